package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/nora/cmd/util"
	"github.com/ValentinKolb/nora/lib/database"
	"github.com/ValentinKolb/nora/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for nora servers",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfPathPrefix       = "/__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	// perfPercentiles are the latency percentiles reported per test
	perfPercentiles = []float64{0.5, 0.9, 0.99}
)

// perfTest is a single benchmark, op is run for a rotating set of paths
type perfTest struct {
	name    string
	prepare bool // write a value to every path before the test
	op      func(path string) database.Target
}

// perfResult is the outcome of a perfTest
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Timer
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different paths to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for nora servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Database: %d\n", util.GetDatabaseID())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)
	tests := []perfTest{
		{name: "set", op: func(path string) database.Target {
			return database.NewTarget(path, database.SetValue{Value: "test"})
		}},
		{name: "set-large", op: func(path string) database.Target {
			return database.NewTarget(path, database.SetValue{Value: largeValue})
		}},
		{name: "get", prepare: true, op: func(path string) database.Target {
			return database.NewTarget(path, database.ObserveOnce{Event: database.EventValue})
		}},
		{name: "update", prepare: true, op: func(path string) database.Target {
			return database.NewTarget(path, database.UpdateChildValues{Values: map[string]any{"a": 1, "b/c": true}})
		}},
		{name: "remove", prepare: true, op: func(path string) database.Target {
			return database.NewTarget(path, database.RemoveValue{})
		}},
		{name: "transaction", op: func(path string) database.Target {
			return database.NewTarget(path, database.Transaction{Block: increment(1)})
		}},
	}

	results := make(map[string]perfResult)
	for _, test := range tests {
		if shouldSkip(test.name) {
			printResult(test.name, perfResult{})
			continue
		}
		result := runPerfTest(test)
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest benchmarks a test and records the latency of every operation
func runPerfTest(test perfTest) perfResult {
	latency := gometrics.NewTimer()
	ctx := context.Background()

	bench := testing.Benchmark(func(b *testing.B) {
		// prepare paths
		getPath, iter := getPaths(test.name)

		if test.prepare {
			iter(func(p string) {
				if _, err := provider.Do(ctx, database.NewTarget(p, database.SetValue{Value: map[string]any{"a": 0}})); err != nil {
					log.Printf("(%s) - error preparing path: %v\n", test.name, err)
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			if _, err := provider.Do(ctx, database.NewTarget(perfPathPrefix+"/"+test.name, database.RemoveValue{})); err != nil {
				log.Printf("(%s) - error removing paths: %v\n", test.name, err)
			}
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				target := test.op(getPath(counter))
				var err error
				latency.Time(func() {
					_, err = provider.Do(ctx, target)
				})
				if err != nil {
					log.Printf("(%s) - error performing operation: %v\n", test.name, err)
				}
				counter++
			}
		})
	})

	return perfResult{bench: bench, latency: latency.Snapshot()}
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

// creates an array of test paths and functions to work with them
func getPaths(test string) (func(int) string, func(func(string))) {
	paths := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		paths[i] = fmt.Sprintf("%s/%s/%d", perfPathPrefix, test, i)
	}

	// Function to get a path by index (with wraparound)
	getPath := func(i int) string {
		return paths[i%perfKeySpread]
	}

	// Function to iterate over all paths and apply a function to each
	iteratePaths := func(fn func(string)) {
		for _, p := range paths {
			fn(p)
		}
	}

	return getPath, iteratePaths
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
	for i, p := range result.latency.Percentiles(perfPercentiles) {
		fmt.Printf("\tp%.0f=%s", perfPercentiles[i]*100, time.Duration(p))
	}
	fmt.Println()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec",
		"P50", "P90", "P99", "MaxLatency",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"DatabaseID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)
		percentiles := result.latency.Percentiles(perfPercentiles)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(percentiles[0]).String(),
			time.Duration(percentiles[1]).String(),
			time.Duration(percentiles[2]).String(),
			time.Duration(result.latency.Max()).String(),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetDatabaseID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
