package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pjtatlow/terminus/flags"
	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/db"
	"github.com/pjtatlow/terminus/internal/ddl"
	"github.com/pjtatlow/terminus/internal/engine"
	"github.com/pjtatlow/terminus/internal/ui"
)

var insertRowCmd = &cobra.Command{
	Use:   "insert-row <table> <tsv-row> <db-path>",
	Short: "Validate and insert a single new row",
	Long: `Insert-row validates a tab-separated row against table's
configuration, allocates the next row number, and inserts it directly
into table — it does not route invalid rows to a conflict table.`,
	Args: cobra.ExactArgs(3),
	RunE: runInsertRow,
}

func init() {
	rootCmd.AddCommand(insertRowCmd)
	flags.AddDefinitionDir(insertRowCmd)
}

func runInsertRow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tableName, tsvRow, dbPath := args[0], args[1], args[2]

	cfg, table, schema, err := loadTableSchema(tableName)
	if err != nil {
		return err
	}

	values, err := parseTSVRow(table, tsvRow)
	if err != nil {
		return err
	}

	client, err := db.Connect(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}
	defer client.Close()

	row, err := engine.InsertNewRow(ctx, client, cfg, table, schema, values)
	if err != nil {
		return err
	}

	if allCellsValid(row) {
		fmt.Println(ui.Success(fmt.Sprintf("✓ Inserted row %d into %s", row.RowNumber, tableName)))
	} else {
		fmt.Println(ui.Warning(fmt.Sprintf("⚠ Inserted row %d into %s with validation errors", row.RowNumber, tableName)))
	}
	return nil
}

// loadTableSchema loads the configuration and generates the in-memory
// schema (constraints and column order) for a single table, without
// re-creating it — the table's DDL must already exist in the database.
func loadTableSchema(tableName string) (*config.Config, *config.Table, *ddl.Schema, error) {
	tablePath := filepath.Join(flags.DefinitionDir, "table.tsv")
	cfg, err := config.Load(afero.NewOsFs(), tablePath)
	if err != nil {
		return nil, nil, nil, err
	}
	table, ok := cfg.Tables[tableName]
	if !ok {
		return nil, nil, nil, fmt.Errorf("undefined table '%s'", tableName)
	}
	schema, err := ddl.Generate(cfg, tableName)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, table, schema, nil
}

// parseTSVRow splits a single tab-separated line into table's declared
// columns, in order.
func parseTSVRow(table *config.Table, line string) (map[string]string, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != len(table.ColumnOrder) {
		return nil, fmt.Errorf("expected %d tab-separated values for table %s, got %d", len(table.ColumnOrder), table.Name, len(fields))
	}
	values := make(map[string]string, len(fields))
	for i, col := range table.ColumnOrder {
		values[col] = fields[i]
	}
	return values, nil
}
