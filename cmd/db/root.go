package db

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lmdict/lmdict/cmd/util"
	"github.com/lmdict/lmdict/lib/dict"
	_ "github.com/lmdict/lmdict/lib/dict/lmdb" // register the lmdb dictionary type
)

var (
	// dictFlags holds the option bits parsed from the shared flags. It is
	// filled by the group's PersistentPreRunE before any subcommand runs.
	dictFlags dict.Flags

	// DatabaseCommands represents the db command group
	DatabaseCommands = &cobra.Command{
		Use:               "db",
		Short:             "Perform dictionary database operations",
		PersistentPreRunE: setupDictFlags,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the shared dictionary flags to the db command
	util.SetupDictFlags(DatabaseCommands)

	// Add subcommands
	DatabaseCommands.AddCommand(getCmd)
	DatabaseCommands.AddCommand(putCmd)
	DatabaseCommands.AddCommand(delCmd)
	DatabaseCommands.AddCommand(scanCmd)
	DatabaseCommands.AddCommand(statsCmd)
	DatabaseCommands.AddCommand(createCmd)
	DatabaseCommands.AddCommand(perfTestCmd)
}

// setupDictFlags parses the shared dictionary option flags
func setupDictFlags(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	flags, err := util.GetDictFlags()
	if err != nil {
		return err
	}
	dictFlags = flags
	return nil
}

// openRead opens a dictionary for lookups and scans.
func openRead(spec string) dict.Dictionary {
	return dict.Open(util.CompleteSpec(spec), os.O_RDONLY, dictFlags)
}

// openWrite opens a dictionary for updates, creating it when missing.
func openWrite(spec string, extra dict.Flags) dict.Dictionary {
	return dict.Open(util.CompleteSpec(spec), os.O_RDWR|os.O_CREATE, dictFlags|extra)
}
