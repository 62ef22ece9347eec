package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func minimalFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "table.tsv",
		"table\tpath\ttype\n"+
			"table\ttable.tsv\ttable\n"+
			"column\tcolumn.tsv\tcolumn\n"+
			"datatype\tdatatype.tsv\tdatatype\n"+
			"foo\tfoo.tsv\t\n")
	writeFile(t, fs, "datatype.tsv",
		"datatype\tparent\tcondition\tSQL type\tdescription\n"+
			"text\t\t\ttext\tany text\n"+
			"empty\ttext\tequals('')\t\tan empty string\n"+
			"line\ttext\texclude(/\\n/)\t\ta single line\n"+
			"word\tline\texclude(/\\s/)\t\ta single word\n"+
			"integer\ttext\tmatch(/[0-9]+/)\tinteger\tan integer\n")
	writeFile(t, fs, "column.tsv",
		"table\tcolumn\tnulltype\tdatatype\tstructure\tdescription\n"+
			"foo\tid\t\tinteger\tprimary\tidentifier\n"+
			"foo\tlabel\tempty\tword\tunique\tname\n")
	return fs
}

func TestLoad_Minimal(t *testing.T) {
	fs := minimalFS(t)
	cfg, err := Load(fs, "table.tsv")
	require.NoError(t, err)

	assert.Equal(t, "table", cfg.Special["table"])
	assert.Equal(t, "column", cfg.Special["column"])
	assert.Equal(t, "datatype", cfg.Special["datatype"])

	require.Contains(t, cfg.Tables, "foo")
	fooTable := cfg.Tables["foo"]
	require.Contains(t, fooTable.Columns, "id")
	require.Contains(t, fooTable.Columns, "label")

	idCol := fooTable.Column("id")
	assert.True(t, idCol.IsPrimary())

	labelCol := fooTable.Column("label")
	assert.True(t, labelCol.IsUnique())
	require.NotNil(t, labelCol.NulltypePredicate)
	assert.True(t, labelCol.NulltypePredicate(""))
	assert.False(t, labelCol.NulltypePredicate("x"))
}

func TestLoad_MissingRequiredDatatype(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "table.tsv",
		"table\tpath\ttype\n"+
			"table\ttable.tsv\ttable\n"+
			"column\tcolumn.tsv\tcolumn\n"+
			"datatype\tdatatype.tsv\tdatatype\n")
	writeFile(t, fs, "datatype.tsv",
		"datatype\tparent\tcondition\tSQL type\tdescription\n"+
			"text\t\t\ttext\tany text\n")
	writeFile(t, fs, "column.tsv", "table\tcolumn\tnulltype\tdatatype\tstructure\tdescription\n")

	_, err := Load(fs, "table.tsv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word")
}

func TestLoad_UndefinedDatatypeInColumn(t *testing.T) {
	fs := minimalFS(t)
	writeFile(t, fs, "column.tsv",
		"table\tcolumn\tnulltype\tdatatype\tstructure\tdescription\n"+
			"foo\tid\t\tnonexistent\tprimary\tidentifier\n")

	_, err := Load(fs, "table.tsv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestLoad_DuplicateSpecialRole(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "table.tsv",
		"table\tpath\ttype\n"+
			"table\ttable.tsv\ttable\n"+
			"table2\ttable.tsv\ttable\n"+
			"column\tcolumn.tsv\tcolumn\n"+
			"datatype\tdatatype.tsv\tdatatype\n")

	_, err := Load(fs, "table.tsv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple tables with type 'table'")
}

func TestLoad_ForeignStructure(t *testing.T) {
	fs := minimalFS(t)
	writeFile(t, fs, "table.tsv",
		"table\tpath\ttype\n"+
			"table\ttable.tsv\ttable\n"+
			"column\tcolumn.tsv\tcolumn\n"+
			"datatype\tdatatype.tsv\tdatatype\n"+
			"foo\tfoo.tsv\t\n"+
			"bar\tbar.tsv\t\n")
	writeFile(t, fs, "column.tsv",
		"table\tcolumn\tnulltype\tdatatype\tstructure\tdescription\n"+
			"foo\tid\t\tinteger\tprimary\tidentifier\n"+
			"bar\tfoo_id\t\tinteger\tfrom(foo.id)\treference to foo\n")

	cfg, err := Load(fs, "table.tsv")
	require.NoError(t, err)
	col := cfg.Tables["bar"].Column("foo_id")
	table, column, ok := col.Foreign()
	require.True(t, ok)
	assert.Equal(t, "foo", table)
	assert.Equal(t, "id", column)
}

func TestLoad_RuleCompilation(t *testing.T) {
	fs := minimalFS(t)
	writeFile(t, fs, "table.tsv",
		"table\tpath\ttype\n"+
			"table\ttable.tsv\ttable\n"+
			"column\tcolumn.tsv\tcolumn\n"+
			"datatype\tdatatype.tsv\tdatatype\n"+
			"rule\trule.tsv\trule\n"+
			"foo\tfoo.tsv\t\n")
	writeFile(t, fs, "column.tsv",
		"table\tcolumn\tnulltype\tdatatype\tstructure\tdescription\n"+
			"foo\ta\t\tword\t\tcolumn a\n"+
			"foo\tb\tempty\tword\t\tcolumn b\n")
	writeFile(t, fs, "rule.tsv",
		"table\twhen column\twhen condition\tthen column\tthen condition\tlevel\tdescription\n"+
			"foo\ta\tmatch(/^x.*/)\tb\tnot null\terror\tb required when a starts with x\n")

	cfg, err := Load(fs, "table.tsv")
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	rule := cfg.Rules[0]
	assert.Nil(t, rule.ThenPredicate)
	require.NotNil(t, rule.WhenPredicate)
	assert.True(t, rule.WhenPredicate("xyz"))
	assert.False(t, rule.WhenPredicate("abc"))
	assert.Equal(t, []*Rule{rule}, cfg.RulesByWhen["foo.a"])
}

func TestSQLType_ClimbsAncestors(t *testing.T) {
	fs := minimalFS(t)
	cfg, err := Load(fs, "table.tsv")
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.SQLType("text"))
	assert.Equal(t, "text", cfg.SQLType("word"))
	assert.Equal(t, "integer", cfg.SQLType("integer"))
}
