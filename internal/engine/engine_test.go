package engine

import (
	"context"
	"testing"

	"github.com/pjtatlow/terminus/internal/condition"
	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/db"
	"github.com/pjtatlow/terminus/internal/ddl"
	"github.com/pjtatlow/terminus/internal/tsv"
	"github.com/stretchr/testify/require"
)

func mustParseStructure(t *testing.T, expr string) *condition.Node {
	t.Helper()
	node, err := condition.Parse(expr)
	require.NoError(t, err)
	return node
}

func buildThingConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Tables: map[string]*config.Table{}, Datatypes: map[string]*config.Datatype{}}
	cfg.Datatypes["text"] = &config.Datatype{Name: "text", SQLType: "text"}

	primaryNode := mustParseStructure(t, "primary")
	table := &config.Table{Name: "thing", Columns: map[string]*config.Column{
		"id":    {Table: "thing", Name: "id", Datatype: "text", Structure: "primary", ParsedStructure: primaryNode},
		"label": {Table: "thing", Name: "label", Datatype: "text"},
	}, ColumnOrder: []string{"id", "label"}}
	cfg.Tables["thing"] = table
	cfg.TableOrder = []string{"thing"}
	return cfg
}

func setupThingSchema(t *testing.T, cfg *config.Config) (*db.Client, *ddl.Schema) {
	t.Helper()
	client, err := db.Connect(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	schema, err := ddl.Generate(cfg, "thing")
	require.NoError(t, err)
	require.NoError(t, client.ExecScript(context.Background(), schema.Statements...))
	return client, schema
}

func TestLoadTable_RoutesDuplicatesToConflict(t *testing.T) {
	cfg := buildThingConfig(t)
	client, schema := setupThingSchema(t, cfg)
	ctx := context.Background()

	rows := []tsv.Row{
		{Columns: []string{"id", "label"}, Values: map[string]string{"id": "a", "label": "first"}},
		{Columns: []string{"id", "label"}, Values: map[string]string{"id": "a", "label": "second"}},
		{Columns: []string{"id", "label"}, Values: map[string]string{"id": "b", "label": "third"}},
	}

	result, err := LoadTable(ctx, client, cfg, cfg.Tables["thing"], schema, rows, Options{ChunkSize: 2, PoolSize: 2})
	require.NoError(t, err)
	require.Equal(t, 2, result.RowsInserted)
	require.Equal(t, 1, result.RowsConflicted)

	var mainCount, conflictCount int
	require.NoError(t, client.GetDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM `thing`").Scan(&mainCount))
	require.NoError(t, client.GetDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM `thing_conflict`").Scan(&conflictCount))
	require.Equal(t, 2, mainCount)
	require.Equal(t, 1, conflictCount)
}

func TestLoadTable_AssignsSequentialRowNumbersAcrossChunks(t *testing.T) {
	cfg := buildThingConfig(t)
	client, schema := setupThingSchema(t, cfg)
	ctx := context.Background()

	var rows []tsv.Row
	for i := 0; i < 5; i++ {
		rows = append(rows, tsv.Row{Columns: []string{"id", "label"}, Values: map[string]string{"id": string(rune('a' + i)), "label": "x"}})
	}

	result, err := LoadTable(ctx, client, cfg, cfg.Tables["thing"], schema, rows, Options{ChunkSize: 2, PoolSize: 1})
	require.NoError(t, err)
	require.Equal(t, 5, result.RowsInserted)
	require.Equal(t, 3, result.ChunksLoaded)

	var maxRowNumber int
	require.NoError(t, client.GetDB().QueryRowContext(ctx, "SELECT MAX(`row_number`) FROM `thing_view`").Scan(&maxRowNumber))
	require.Equal(t, 5, maxRowNumber)
}

func TestInsertNewRow_AllocatesNextRowNumber(t *testing.T) {
	cfg := buildThingConfig(t)
	client, schema := setupThingSchema(t, cfg)
	ctx := context.Background()

	row, err := InsertNewRow(ctx, client, cfg, cfg.Tables["thing"], schema, map[string]string{"id": "a", "label": "first"})
	require.NoError(t, err)
	require.Equal(t, 1, row.RowNumber)
	require.True(t, row.Cell("id").Valid)

	row2, err := InsertNewRow(ctx, client, cfg, cfg.Tables["thing"], schema, map[string]string{"id": "a", "label": "dup"})
	require.NoError(t, err)
	require.Equal(t, 2, row2.RowNumber)
	require.False(t, row2.Cell("id").Valid)
}

func TestUpdateRow_ExcludesOwnValueFromUniquenessCheck(t *testing.T) {
	cfg := buildThingConfig(t)
	client, schema := setupThingSchema(t, cfg)
	ctx := context.Background()

	_, err := InsertNewRow(ctx, client, cfg, cfg.Tables["thing"], schema, map[string]string{"id": "a", "label": "first"})
	require.NoError(t, err)

	row, err := UpdateRow(ctx, client, cfg, cfg.Tables["thing"], schema, 1, map[string]string{"id": "a", "label": "renamed"})
	require.NoError(t, err)
	require.True(t, row.Cell("id").Valid)

	var label string
	require.NoError(t, client.GetDB().QueryRowContext(ctx, "SELECT `label` FROM `thing` WHERE `row_number` = 1").Scan(&label))
	require.Equal(t, "renamed", label)
}
