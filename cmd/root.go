package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pjtatlow/terminus/flags"
)

var rootCmd = &cobra.Command{
	Use:   "terminus",
	Short: "Tabular data validation and loading engine",
	Long: `Terminus validates and loads TSV tables into a SQLite database
according to a declarative column/datatype/rule configuration.`,
}

func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		if flags.Verbose {
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, canceling...")
		}
		cancel()
	}()
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags.AddVerbose(rootCmd)
	logrus.SetLevel(logrus.InfoLevel)
}

// logger returns the package-level diagnostic logger, switched to debug
// output when --verbose is set.
func logger() *logrus.Entry {
	if flags.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
