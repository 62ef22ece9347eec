package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pjtatlow/terminus/flags"
	"github.com/pjtatlow/terminus/internal/db"
	"github.com/pjtatlow/terminus/internal/validate"
)

var typeaheadCmd = &cobra.Command{
	Use:   "typeahead <table> <column> <db-path> [prefix]",
	Short: "List candidate values for a typeahead widget",
	Long: `Typeahead resolves table.column's structure — an in(...)
datatype, a from(...) foreign column, or an under(...) subtree — and
returns every candidate value containing prefix as a substring.`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runTypeahead,
}

func init() {
	rootCmd.AddCommand(typeaheadCmd)
	flags.AddDefinitionDir(typeaheadCmd)
}

func runTypeahead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tableName, columnName, dbPath := args[0], args[1], args[2]
	var prefix string
	if len(args) == 4 {
		prefix = args[3]
	}

	cfg, _, _, err := loadTableSchema(tableName)
	if err != nil {
		return err
	}

	client, err := db.Connect(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}
	defer client.Close()

	suggestions, err := validate.Typeahead(ctx, client.GetDB(), cfg, tableName, columnName, prefix)
	if err != nil {
		return err
	}

	out, err := json.Marshal(suggestions)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
