package db

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lmdict/lmdict/cmd/util"
	"github.com/lmdict/lmdict/lib/dict"
	lmdbdict "github.com/lmdict/lmdict/lib/dict/lmdb"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [database] [source-file]",
		Short: "Builds a database from a key value source file",
		Long: util.WrapString("Builds a database from a source file with one " +
			"key value pair per line, separated by whitespace. Blank lines and " +
			"lines starting with '#' are skipped. A source file of '-' reads " +
			"from standard input. An existing database is replaced."),
		Args: cobra.ExactArgs(2),
		RunE: runCreate,
	}
)

// entry is one parsed source line.
type entry struct {
	key   string
	value string
}

func runCreate(_ *cobra.Command, args []string) error {
	spec := util.CompleteSpec(args[0])
	source := args[1]

	entries, err := readSource(source)
	if err != nil {
		return err
	}

	// Replace, never append to, a database from an earlier run.
	if dictType, name, _ := strings.Cut(spec, ":"); dictType == lmdbdict.DictType {
		_ = os.Remove(name + lmdbdict.Suffix)
	}

	d := dict.Open(spec, os.O_RDWR|os.O_CREATE, dictFlags|dict.FlagBulkUpdate)
	defer d.Close()

	// The whole load runs as one transaction. When the engine had to grow
	// its memory map mid-batch the batch is rolled back and replayed; the
	// engine bounds how often that may happen.
	loaded := 0
	for {
		loaded = 0
		restart := false
		for _, e := range entries {
			status, err := d.Update(e.key, []byte(e.value))
			if errors.Is(err, dict.ErrRestartBulk) {
				restart = true
				break
			}
			if err != nil {
				return err
			}
			if status == dict.StatusSuccess {
				loaded++
			}
		}
		if !restart {
			break
		}
	}

	fmt.Printf("created %s with %d entries (%d source lines)\n", spec, loaded, len(entries))
	return nil
}

// readSource parses the key value pairs from the source file. The batch is
// held in memory because a bulk load may need to be replayed.
func readSource(source string) ([]entry, error) {
	var in *os.File
	if source == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	var entries []entry
	lineno := 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, " ")
		if !found {
			key, value, found = strings.Cut(line, "\t")
		}
		if !found {
			return nil, fmt.Errorf("%s line %d: need \"key value\", got %q", source, lineno, line)
		}
		entries = append(entries, entry{key: key, value: strings.TrimSpace(value)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
