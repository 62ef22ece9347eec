package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnect_InMemory(t *testing.T) {
	ctx := context.Background()
	client, err := Connect(ctx, ":memory:")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.ExecScript(ctx, "CREATE TABLE foo (id INTEGER PRIMARY KEY);"))

	_, err = client.GetDB().ExecContext(ctx, "INSERT INTO foo (id) VALUES (1);")
	require.NoError(t, err)

	var count int
	require.NoError(t, client.GetDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM foo;").Scan(&count))
	require.Equal(t, 1, count)
}

func TestConnect_ForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	client, err := Connect(ctx, ":memory:")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.ExecScript(ctx,
		"CREATE TABLE parent (id INTEGER PRIMARY KEY);",
		"CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id));",
	))

	_, err = client.GetDB().ExecContext(ctx, "INSERT INTO child (id, parent_id) VALUES (1, 99);")
	require.Error(t, err)
}
