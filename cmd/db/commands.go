package db

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lmdict/lmdict/lib/dict"
	"github.com/lmdict/lmdict/lib/engine"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [database] [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := openRead(args[0])
			defer d.Close()

			key := args[1]
			if value, found, err := d.Lookup(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, value=%s\n", key, found, value)
			}
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [database] [key] [value]",
		Short: "Stores the value for a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := openWrite(args[0], 0)
			defer d.Close()

			if status, err := d.Update(args[1], []byte(args[2])); err != nil {
				return err
			} else {
				fmt.Printf("put %s\n", status)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [database] [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := openWrite(args[0], 0)
			defer d.Close()

			key := args[1]
			if found, err := d.Delete(key); err != nil {
				return err
			} else if found {
				fmt.Println("delete successfully")
			} else {
				fmt.Printf("key=%s not found\n", key)
			}
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [database]",
		Short: "Lists all key value pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := openRead(args[0])
			defer d.Close()

			count := 0
			fn := dict.SeqFirst
			for {
				key, value, ok, err := d.Sequence(fn)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				fmt.Printf("%s\t%s\n", key, value)
				count++
				fn = dict.SeqNext
			}
			fmt.Printf("# %d entries\n", count)
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats [database]",
		Short: "Prints database metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := openRead(args[0])
			defer d.Close()

			infoer, ok := d.(interface{ Info() (engine.Info, error) })
			if !ok {
				return fmt.Errorf("dictionary type %s reports no statistics", d.Type())
			}
			info, err := infoer.Info()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)
