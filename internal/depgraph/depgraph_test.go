package depgraph

import (
	"testing"

	"github.com/pjtatlow/terminus/internal/condition"
	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structureColumn(t *testing.T, table, name, structure string) *config.Column {
	t.Helper()
	col := &config.Column{Table: table, Name: name, Structure: structure}
	if structure != "" {
		node, err := condition.Parse(structure)
		require.NoError(t, err)
		col.ParsedStructure = node
	}
	return col
}

func newTable(name string) *config.Table {
	return &config.Table{Name: name, Columns: map[string]*config.Column{}}
}

func addColumn(table *config.Table, col *config.Column) {
	table.Columns[col.Name] = col
	table.ColumnOrder = append(table.ColumnOrder, col.Name)
}

func TestOrder_ForeignDependency(t *testing.T) {
	cfg := &config.Config{Tables: map[string]*config.Table{}}

	foo := newTable("foo")
	addColumn(foo, structureColumn(t, "foo", "id", "primary"))
	bar := newTable("bar")
	addColumn(bar, structureColumn(t, "bar", "foo_id", "from(foo.id)"))

	cfg.Tables["foo"] = foo
	cfg.Tables["bar"] = bar
	cfg.TableOrder = []string{"bar", "foo"}

	order, err := Order(cfg)
	require.NoError(t, err)
	fooIdx := indexOf(order, "foo")
	barIdx := indexOf(order, "bar")
	assert.Less(t, fooIdx, barIdx)
}

func TestOrder_CycleDetected(t *testing.T) {
	cfg := &config.Config{Tables: map[string]*config.Table{}}

	foo := newTable("foo")
	addColumn(foo, structureColumn(t, "foo", "bar_id", "from(bar.id)"))
	bar := newTable("bar")
	addColumn(bar, structureColumn(t, "bar", "foo_id", "from(foo.id)"))

	cfg.Tables["foo"] = foo
	cfg.Tables["bar"] = bar
	cfg.TableOrder = []string{"foo", "bar"}

	_, err := Order(cfg)
	require.Error(t, err)
	var cycleErr *errs.CycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestCheckTreeCycles_Acyclic(t *testing.T) {
	table := newTable("foobar")
	addColumn(table, structureColumn(t, "foobar", "parent", "tree(child)"))
	addColumn(table, structureColumn(t, "foobar", "child", ""))

	err := CheckTreeCycles(table)
	require.NoError(t, err)
}

func TestCheckTreeCycles_Cyclic(t *testing.T) {
	table := newTable("foobar")
	addColumn(table, structureColumn(t, "foobar", "a", "tree(b)"))
	addColumn(table, structureColumn(t, "foobar", "b", "tree(a)"))

	err := CheckTreeCycles(table)
	require.Error(t, err)
	var cycleErr *errs.CycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestCheckUnderReferences_ValidatesTreeChild(t *testing.T) {
	cfg := &config.Config{Tables: map[string]*config.Table{}}

	foobar := newTable("foobar")
	addColumn(foobar, structureColumn(t, "foobar", "parent", "tree(child)"))
	addColumn(foobar, structureColumn(t, "foobar", "child", ""))

	other := newTable("other")
	addColumn(other, structureColumn(t, "other", "xyzzy", "under(foobar.child, 'root')"))

	cfg.Tables["foobar"] = foobar
	cfg.Tables["other"] = other
	cfg.TableOrder = []string{"foobar", "other"}

	require.NoError(t, CheckUnderReferences(cfg))
}

func TestCheckUnderReferences_RejectsNonTreeColumn(t *testing.T) {
	cfg := &config.Config{Tables: map[string]*config.Table{}}

	foobar := newTable("foobar")
	addColumn(foobar, structureColumn(t, "foobar", "notatree", ""))

	other := newTable("other")
	addColumn(other, structureColumn(t, "other", "xyzzy", "under(foobar.notatree, 'root')"))

	cfg.Tables["foobar"] = foobar
	cfg.Tables["other"] = other
	cfg.TableOrder = []string{"foobar", "other"}

	err := CheckUnderReferences(cfg)
	require.Error(t, err)
	var cfgErr *errs.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
