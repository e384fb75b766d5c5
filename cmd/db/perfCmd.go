package db

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lmdict/lmdict/cmd/util"
	"github.com/lmdict/lmdict/lib/dict"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf [database]",
		Short:   "Performance testing tool for dictionary databases",
		Long:    "",
		Args:    cobra.ExactArgs(1),
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	// perfDict is the dictionary under test, opened by runPerf. It is a
	// single-goroutine handle, so all benchmarks run serially.
	perfDict dict.Dictionary

	// perfTimers collects per-operation latency distributions alongside the
	// ops/sec numbers of the benchmark harness.
	perfTimers = gometrics.NewRegistry()
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	if skip := viper.GetString("skip"); skip != "" {
		perfSkip = strings.Split(skip, ",")
	}

	return nil
}

func runPerf(_ *cobra.Command, args []string) error {

	fmt.Println("Performance testing tool for dictionary databases")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Database: %s\n", util.CompleteSpec(args[0]))
	fmt.Printf("Flags: %s\n", dictFlags)
	fmt.Printf("Keys: %d\n", perfKeySpread)
	fmt.Println()

	perfDict = openWrite(args[0], dict.FlagDupReplace)
	defer perfDict.Close()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	putResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("put") {
			return
		}

		// prepare keys
		getKey, iter := getKeys("put")
		timer := perfTimer("put")

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := perfDict.Delete(k); err != nil {
					log.Printf("(put) - error deleting key: %v\n", err)
				}
			})
		})

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			key := getKey(i)
			timer.Time(func() {
				if _, err := perfDict.Update(key, []byte("test")); err != nil {
					log.Printf("(put) - error storing key: %v\n", err)
				}
			})
		}
	})

	results["put"] = putResult
	printResult("put", putResult)

	putLargeResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("put-large") {
			return
		}

		// prepare large value
		largeValue := make([]byte, perfLargeValueSizeKB*1024)

		// prepare keys
		getKey, iter := getKeys("put-large")
		timer := perfTimer("put-large")

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := perfDict.Delete(k); err != nil {
					log.Printf("(put-large) - error deleting key: %v\n", err)
				}
			})
		})

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			key := getKey(i)
			timer.Time(func() {
				if _, err := perfDict.Update(key, largeValue); err != nil {
					log.Printf("(put-large) - error storing key: %v\n", err)
				}
			})
		}
	})

	results["put-large"] = putLargeResult
	printResult("put-large", putLargeResult)

	getResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get") {
			return
		}

		// prepare keys
		getKey, iter := getKeys("get")
		timer := perfTimer("get")

		// set keys
		iter(func(k string) {
			if _, err := perfDict.Update(k, []byte("test")); err != nil {
				log.Printf("(get) - error storing key: %v\n", err)
			}
		})

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := perfDict.Delete(k); err != nil {
					log.Printf("(get) - error deleting key: %v\n", err)
				}
			})
		})

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			key := getKey(i)
			timer.Time(func() {
				if _, _, err := perfDict.Lookup(key); err != nil {
					log.Printf("(get) - error reading key: %v\n", err)
				}
			})
		}
	})

	results["get"] = getResult
	printResult("get", getResult)

	getMissResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get-miss") {
			return
		}

		timer := perfTimer("get-miss")

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			key := fmt.Sprintf("%s/get-miss-%d", perfKeyPrefix, i%perfKeySpread)
			timer.Time(func() {
				if _, _, err := perfDict.Lookup(key); err != nil {
					log.Printf("(get-miss) - error reading key: %v\n", err)
				}
			})
		}
	})

	results["get-miss"] = getMissResult
	printResult("get-miss", getMissResult)

	deleteResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("delete") {
			return
		}

		timer := perfTimer("delete")

		// set keys; every iteration deletes a key of its own
		b.StopTimer()
		for i := 0; i < b.N; i++ {
			key := fmt.Sprintf("%s-delete-%d", perfKeyPrefix, i)
			if _, err := perfDict.Update(key, []byte("test")); err != nil {
				log.Printf("(delete) - error storing key: %v\n", err)
			}
		}
		b.StartTimer()

		for i := 0; i < b.N; i++ {
			key := fmt.Sprintf("%s-delete-%d", perfKeyPrefix, i)
			timer.Time(func() {
				if _, err := perfDict.Delete(key); err != nil {
					log.Printf("(delete) - error deleting key: %v\n", err)
				}
			})
		}
	})

	results["delete"] = deleteResult
	printResult("delete", deleteResult)

	scanResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("scan") {
			return
		}

		// prepare keys
		_, iter := getKeys("scan")
		timer := perfTimer("scan")

		// set keys
		iter(func(k string) {
			if _, err := perfDict.Update(k, []byte("test")); err != nil {
				log.Printf("(scan) - error storing key: %v\n", err)
			}
		})

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := perfDict.Delete(k); err != nil {
					log.Printf("(scan) - error deleting key: %v\n", err)
				}
			})
		})

		b.ResetTimer()

		fn := dict.SeqFirst
		for i := 0; i < b.N; i++ {
			timer.Time(func() {
				_, _, ok, err := perfDict.Sequence(fn)
				if err != nil {
					log.Printf("(scan) - error seeking: %v\n", err)
				}
				if ok {
					fn = dict.SeqNext
				} else {
					fn = dict.SeqFirst
				}
			})
		}
	})

	results["scan"] = scanResult
	printResult("scan", scanResult)

	mixedResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("mixed") {
			return
		}

		// prepare keys
		getKey, iter := getKeys("mixed")
		timer := perfTimer("mixed")

		// set keys
		iter(func(k string) {
			if _, err := perfDict.Update(k, []byte("test")); err != nil {
				log.Printf("(mixed) - error storing key: %v\n", err)
			}
		})

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := perfDict.Delete(k); err != nil {
					log.Printf("(mixed) - error deleting key: %v\n", err)
				}
			})
		})

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			key := getKey(i)
			op := i % 3
			timer.Time(func() {
				var err error
				switch op {
				case 0: // put
					_, err = perfDict.Update(key, []byte("test"))
				case 1: // get
					_, _, err = perfDict.Lookup(key)
				case 2: // get again, scans stay out of the mixed load
					_, _, err = perfDict.Lookup(key)
				}
				if err != nil {
					log.Printf("(mixed) - error performing operation (%d): %v\n", op, err)
				}
			})
		}
	})

	results["mixed"] = mixedResult
	printResult("mixed", mixedResult)

	// Print latency distributions collected alongside the harness numbers
	fmt.Println()
	fmt.Println("Latency percentiles:")
	perfTimers.Each(func(name string, metric interface{}) {
		timer, ok := metric.(gometrics.Timer)
		if !ok || timer.Count() == 0 {
			return
		}
		snap := timer.Snapshot()
		fmt.Printf("%-20smean=%s\tp95=%s\tp99=%s\n", name,
			time.Duration(int64(snap.Mean())),
			time.Duration(int64(snap.Percentile(0.95))),
			time.Duration(int64(snap.Percentile(0.99))))
	})

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, args[0], results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// perfTimer returns the latency timer for one benchmark, resetting any
// samples from an earlier harness calibration round.
func perfTimer(name string) gometrics.Timer {
	perfTimers.Unregister(name)
	return gometrics.GetOrRegisterTimer(name, perfTimers)
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath, database string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Database", "Flags",
		"LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			util.CompleteSpec(database),
			dictFlags.String(),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
