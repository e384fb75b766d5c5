package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lmdict/lmdict/cmd/db"
	"github.com/lmdict/lmdict/cmd/util"
	"github.com/lmdict/lmdict/lib/logging"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lmdict",
		Short: "LMDB dictionary maintenance tool",
		Long: fmt.Sprintf(`lmdict (v%s)

A maintenance tool for LMDB-backed lookup dictionaries: create, query,
update and scan memory-mapped database files shared between processes.`, Version),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if level, err := cmd.Flags().GetString("log-level"); err == nil {
				logging.SetGlobalLevel(logging.ParseLogLevel(level))
			}
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lmdict",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lmdict v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(db.DatabaseCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("log level to use (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
