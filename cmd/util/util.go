package util

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lmdict/lmdict/lib/dict"
	lmdbdict "github.com/lmdict/lmdict/lib/dict/lmdb"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("lmdict")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupDictFlags adds the shared dictionary option flags to a command
func SetupDictFlags(cmd *cobra.Command) {
	key := "lock"
	cmd.PersistentFlags().Bool(key, true, WrapString("Bracket every operation with an advisory file lock"))

	key = "fold-key"
	cmd.PersistentFlags().Bool(key, false, WrapString("Fold keys to lowercase before storing and looking up"))

	key = "world-read"
	cmd.PersistentFlags().Bool(key, false, WrapString("Database file will be world-readable (switches the engine to a hardened write mode)"))

	key = "dup"
	cmd.PersistentFlags().String(key, "replace", WrapString("Duplicate key policy: ignore, warn, replace or fatal"))

	key = "encoding"
	cmd.PersistentFlags().String(key, "auto", WrapString("Key/value encoding to read and write: auto, sentinel or no-sentinel"))

	key = "map-size"
	cmd.PersistentFlags().Int64(key, lmdbdict.DefaultMapSize, WrapString("Initial memory map size in bytes - the map grows on demand"))
}

// GetDictFlags reads the dictionary option flags from viper
func GetDictFlags() (dict.Flags, error) {
	var flags dict.Flags

	if viper.GetBool("lock") {
		flags |= dict.FlagLock
	}
	if viper.GetBool("fold-key") {
		flags |= dict.FlagFoldKey
	}
	if viper.GetBool("world-read") {
		flags |= dict.FlagWorldRead
	}

	switch viper.GetString("dup") {
	case "ignore":
		flags |= dict.FlagDupIgnore
	case "warn":
		flags |= dict.FlagDupWarn
	case "replace":
		flags |= dict.FlagDupReplace
	case "fatal":
		// no flag set: a duplicate key ends the run
	default:
		return 0, fmt.Errorf("invalid duplicate policy %q (need ignore, warn, replace or fatal)", viper.GetString("dup"))
	}

	switch viper.GetString("encoding") {
	case "auto":
		flags |= dict.FlagTrySentinel | dict.FlagTryNoSentinel
	case "sentinel":
		flags |= dict.FlagTrySentinel
	case "no-sentinel":
		flags |= dict.FlagTryNoSentinel
	default:
		return 0, fmt.Errorf("invalid encoding %q (need auto, sentinel or no-sentinel)", viper.GetString("encoding"))
	}

	lmdbdict.DefaultMapSize = viper.GetInt64("map-size")

	return flags, nil
}

// CompleteSpec turns a bare database name into a full "type:name" spec,
// defaulting to the lmdb dictionary type.
func CompleteSpec(arg string) string {
	if strings.Contains(arg, ":") {
		return arg
	}
	return lmdbdict.DictType + ":" + arg
}
