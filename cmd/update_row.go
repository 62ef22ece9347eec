package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pjtatlow/terminus/flags"
	"github.com/pjtatlow/terminus/internal/db"
	"github.com/pjtatlow/terminus/internal/engine"
	"github.com/pjtatlow/terminus/internal/ui"
)

var updateRowCmd = &cobra.Command{
	Use:   "update-row <table> <row-number> <tsv-row> <db-path>",
	Short: "Validate and update an existing row in place",
	Long: `Update-row validates a tab-separated row against table's
configuration, excluding the row's own prior value from uniqueness
checks, then overwrites it in place.`,
	Args: cobra.ExactArgs(4),
	RunE: runUpdateRow,
}

func init() {
	rootCmd.AddCommand(updateRowCmd)
	flags.AddDefinitionDir(updateRowCmd)
}

func runUpdateRow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tableName, rowNumberArg, tsvRow, dbPath := args[0], args[1], args[2], args[3]

	rowNumber, err := strconv.Atoi(rowNumberArg)
	if err != nil {
		return fmt.Errorf("invalid row number '%s': %w", rowNumberArg, err)
	}

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

	row, err := engine.UpdateRow(ctx, client, cfg, table, schema, rowNumber, values)
	if err != nil {
		return err
	}

	if allCellsValid(row) {
		fmt.Println(ui.Success(fmt.Sprintf("✓ Updated row %d of %s", row.RowNumber, tableName)))
	} else {
		fmt.Println(ui.Warning(fmt.Sprintf("⚠ Updated row %d of %s with validation errors", row.RowNumber, tableName)))
	}
	return nil
}
