// Command perf-gate compares two `go test -bench` outputs and fails when a
// tracked benchmark regressed beyond the threshold.
//
//	go test -run '^$' -bench . -count 5 . > base.txt
//	go test -run '^$' -bench . -count 5 . > cand.txt
//	go run ./cmd/perf-gate --baseline base.txt --candidate cand.txt
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/pflag"
)

const defaultThreshold = 0.30

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
	)

	flagSet := pflag.NewFlagSet("perf-gate", pflag.ContinueOnError)
	flagSet.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flagSet.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flagSet.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "--baseline and --candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "--threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseBenchmarkFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseBenchmarkFile(candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	results, failures := compare(baseline, candidate, threshold)
	sort.Slice(results, func(i, j int) bool {
		if results[i].benchmark != results[j].benchmark {
			return results[i].benchmark < results[j].benchmark
		}
		return results[i].metric < results[j].metric
	})

	fmt.Println("perf regression check:")
	fmt.Println("benchmark metric baseline candidate delta")
	for _, r := range results {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.metric, r.baseline, r.candidate, r.delta*100)
	}

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, failure := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", failure)
		}
		os.Exit(1)
	}
}
