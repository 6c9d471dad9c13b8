// Package cli provides the testplan-engine command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"testops/testplan-engine/pkg/logger"
)

// Version is the current version number.
const Version = "0.1.0"

var (
	debug    bool
	logLevel string
)

// rootCmd is the root command.
var rootCmd = &cobra.Command{
	Use:   "testplan-engine",
	Short: "Template driven test plan execution engine",
	Long: `testplan-engine instantiates test plans from templates and drives their
lifecycle: each transition fires an execution action whose arguments are
resolved against the plan's properties and dispatched to the external
execution engines.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logger.EnableDebug()
		} else if logLevel != "" {
			logger.SetLevelFromString(logLevel)
		}
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetRootCmd returns the root command (exposed for tests).
func GetRootCmd() *cobra.Command {
	return rootCmd
}
