package validate

import (
	"context"
	"testing"

	"github.com/pjtatlow/terminus/internal/condition"
	"github.com/pjtatlow/terminus/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTypeaheadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Tables: map[string]*config.Table{}, Datatypes: map[string]*config.Datatype{}}

	inNode, err := condition.Parse("in('red', 'green', 'blue')")
	require.NoError(t, err)
	cfg.Datatypes["color"] = &config.Datatype{Name: "color", ParsedCondition: inNode}
	cfg.Datatypes["text"] = &config.Datatype{Name: "text"}

	fromNode, err := condition.Parse("from(parent.id)")
	require.NoError(t, err)
	underNode, err := condition.Parse("under(term.id, 'root')")
	require.NoError(t, err)
	treeNode, err := condition.Parse("tree(id)")
	require.NoError(t, err)

	cfg.Tables["widget"] = &config.Table{Name: "widget", Columns: map[string]*config.Column{
		"shade":     {Table: "widget", Name: "shade", Datatype: "color"},
		"parent_id": {Table: "widget", Name: "parent_id", Datatype: "text", Structure: "from(parent.id)", ParsedStructure: fromNode},
		"ancestor":  {Table: "widget", Name: "ancestor", Datatype: "text", Structure: "under(term.id, 'root')", ParsedStructure: underNode},
	}, ColumnOrder: []string{"shade", "parent_id", "ancestor"}}

	cfg.Tables["parent"] = &config.Table{Name: "parent", Columns: map[string]*config.Column{
		"id": {Table: "parent", Name: "id", Datatype: "text"},
	}, ColumnOrder: []string{"id"}}

	cfg.Tables["term"] = &config.Table{Name: "term", Columns: map[string]*config.Column{
		"id":     {Table: "term", Name: "id", Datatype: "text"},
		"parent": {Table: "term", Name: "parent", Datatype: "text", Structure: "tree(id)", ParsedStructure: treeNode},
	}, ColumnOrder: []string{"id", "parent"}}

	return cfg
}

func TestTypeahead_InDatatype(t *testing.T) {
	cfg := buildTypeaheadConfig(t)
	client := openTestDB(t)
	suggestions, err := Typeahead(context.Background(), client.GetDB(), cfg, "widget", "shade", "re")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "red", suggestions[0].ID)
}

func TestTypeahead_ForeignColumn(t *testing.T) {
	cfg := buildTypeaheadConfig(t)
	client := openTestDB(t)
	ctx := context.Background()
	_, err := client.GetDB().ExecContext(ctx, "CREATE TABLE parent (row_number INTEGER, id TEXT)")
	require.NoError(t, err)
	_, err = client.GetDB().ExecContext(ctx, "INSERT INTO parent (row_number, id) VALUES (1, 'alpha'), (2, 'beta')")
	require.NoError(t, err)

	suggestions, err := Typeahead(ctx, client.GetDB(), cfg, "widget", "parent_id", "al")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "alpha", suggestions[0].ID)
}

func TestTypeahead_UnderSubtree(t *testing.T) {
	cfg := buildTypeaheadConfig(t)
	client := openTestDB(t)
	ctx := context.Background()
	_, err := client.GetDB().ExecContext(ctx, "CREATE TABLE term (row_number INTEGER, id TEXT, parent TEXT)")
	require.NoError(t, err)
	_, err = client.GetDB().ExecContext(ctx,
		"INSERT INTO term (row_number, id, parent) VALUES (1, 'root', NULL), (2, 'mid', 'root'), (3, 'leaf', 'mid')")
	require.NoError(t, err)

	suggestions, err := Typeahead(ctx, client.GetDB(), cfg, "widget", "ancestor", "")
	require.NoError(t, err)
	var ids []string
	for _, s := range suggestions {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "root")
}

func TestTypeahead_UndeclaredColumn(t *testing.T) {
	cfg := buildTypeaheadConfig(t)
	client := openTestDB(t)
	_, err := Typeahead(context.Background(), client.GetDB(), cfg, "widget", "nope", "")
	require.Error(t, err)
}
