package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pjtatlow/terminus/flags"
	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/depgraph"
	"github.com/pjtatlow/terminus/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a table/column/datatype/rule configuration",
	Long: `Validate loads the configuration from the given definitions
directory and checks it for structural problems: undefined datatypes,
broken tree or under references, and foreign/dependency cycles. It does
not touch a database.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	flags.AddDefinitionDir(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger()
	tablePath := filepath.Join(flags.DefinitionDir, "table.tsv")

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
	log.WithField("tables", len(order)).Debug("computed load order")

	if flags.Verbose {
		fmt.Println(ui.Subtle(fmt.Sprintf("  Found %d tables, %d datatypes", len(cfg.Tables), len(cfg.Datatypes))))
	}
	fmt.Println(ui.Success(fmt.Sprintf("✓ Configuration is valid (%d tables)", len(order))))
	return nil
}
