package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pjtatlow/terminus/flags"
	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/db"
	"github.com/pjtatlow/terminus/internal/ddl"
	"github.com/pjtatlow/terminus/internal/depgraph"
	"github.com/pjtatlow/terminus/internal/engine"
	"github.com/pjtatlow/terminus/internal/postload"
	"github.com/pjtatlow/terminus/internal/tsv"
	"github.com/pjtatlow/terminus/internal/ui"
)

var loadCmd = &cobra.Command{
	Use:   "load <table.tsv> <db-path>",
	Short: "Load every configured table into a SQLite database",
	Long: `Load reads the table/column/datatype/rule configuration starting
from the given table table, creates the schema for every table in
dependency-safe order, then validates and inserts each table's TSV rows,
finally running the tree-foreign-key and under-subtree post-load checks.`,
	Args: cobra.ExactArgs(2),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	flags.AddChunkSize(loadCmd)
	flags.AddPoolSize(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger()
	tablePath := args[0]
	dbPath := flags.ResolveDbPath(args[1])

	if flags.Verbose {
		fmt.Println(ui.Subtle(fmt.Sprintf("→ Loading configuration from %s...", tablePath)))
	}
	cfg, err := config.Load(afero.NewOsFs(), tablePath)
	if err != nil {
		fmt.Println(ui.Error(fmt.Sprintf("✗ %s", err)))
		return err
	}

	order, err := depgraph.Order(cfg)
	if err != nil {
		fmt.Println(ui.Error(fmt.Sprintf("✗ %s", err)))
		return err
	}

	client, err := db.Connect(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}
	defer client.Close()

	opts := engine.Options{ChunkSize: flags.ChunkSize, PoolSize: flags.PoolSize, Log: log}

	for _, tableName := range order {
		table := cfg.Tables[tableName]
		if table.Type != "" {
			continue // special tables (table/column/datatype/rule) are config, not data
		}

		schema, err := ddl.Generate(cfg, tableName)
		if err != nil {
			return fmt.Errorf("table %s: %w", tableName, err)
		}
		if err := client.ExecScript(ctx, schema.Statements...); err != nil {
			return fmt.Errorf("table %s: failed to create schema: %w", tableName, err)
		}

		rows, err := tsv.ReadAll(afero.NewOsFs(), table.Path)
		if err != nil {
			return fmt.Errorf("table %s: %w", tableName, err)
		}

		result, err := engine.LoadTable(ctx, client, cfg, table, schema, rows, opts)
		if err != nil {
			return fmt.Errorf("table %s: %w", tableName, err)
		}

		if err := runPostLoad(ctx, client, cfg, tableName, schema); err != nil {
			return fmt.Errorf("table %s: post-load check: %w", tableName, err)
		}

		fmt.Println(ui.Success(fmt.Sprintf("✓ %s: %d inserted, %d sent to conflict table (%d chunks)",
			tableName, result.RowsInserted, result.RowsConflicted, result.ChunksLoaded)))
	}

	return nil
}

func runPostLoad(ctx context.Context, client *db.Client, cfg *config.Config, tableName string, schema *ddl.Schema) error {
	tx, err := client.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := postload.Check(ctx, tx, cfg, tableName, schema.Constraints); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
