// Package flags declares the terminus CLI's persistent and per-command
// flags, layered with viper so chunk size, pool size, and the default
// database path can also come from a config file or environment variable.
package flags

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Verbose       bool
	DefinitionDir string
	DbPath        string
	ChunkSize     int
	PoolSize      int
)

func init() {
	viper.SetConfigName("terminus")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("terminus")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("chunk_size", 300)
	viper.SetDefault("pool_size", 0) // 0 means "use engine.DefaultPoolSize()"
	viper.SetDefault("db_path", "")

	// A missing terminus.yaml is not an error; flags/env/defaults still apply.
	_ = viper.ReadInConfig()
}

func AddVerbose(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Enable verbose output")
}

func AddDefinitionDir(cmd *cobra.Command) {
	cmd.Flags().StringVar(&DefinitionDir, "definitions", "./definitions", "Directory containing table, column, datatype, and rule definition files")
}

func AddChunkSize(cmd *cobra.Command) {
	cmd.Flags().IntVar(&ChunkSize, "chunk-size", viper.GetInt("chunk_size"), "Number of rows validated and inserted together")
}

func AddPoolSize(cmd *cobra.Command) {
	cmd.Flags().IntVar(&PoolSize, "pool-size", viper.GetInt("pool_size"), "Number of concurrent workers for intra-row validation (0 selects a default based on CPU count)")
}

// ResolveDbPath returns the db path positional argument if it is non-empty,
// else DbPath if it has been set, else the db_path value from the
// environment (TERMINUS_DB_PATH) or terminus.yaml, else "". No flag is
// bound to DbPath.
func ResolveDbPath(arg string) string {
	if arg != "" {
		return arg
	}
	if DbPath != "" {
		return DbPath
	}
	return viper.GetString("db_path")
}
