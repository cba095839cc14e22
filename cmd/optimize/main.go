// Command optimize searches trail and emitter parameters with CMA-ES for
// runs that settle into a stable filament network.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/physarum/config"
)

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	emitter := flag.String("emitter", "core", "Name of the emitter whose steering is tuned")
	maxTicks := flag.Int("max-ticks", 3600, "Simulation length per run in ticks")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	coverage := flag.Float64("coverage", 0.3, "Target fraction of covered trail cells")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("creating output directory: %v", err)
	}

	base, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	params := NewParamVector(*emitter)
	start, err := params.ExtractFromConfig(base)
	if err != nil {
		log.Fatal(err)
	}

	runSeeds := make([]int64, *seeds)
	for i := range runSeeds {
		runSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, uint64(*maxTicks), runSeeds, *configPath, *coverage)

	logFile, err := os.Create(filepath.Join(*outputDir, "optimize_log.csv"))
	if err != nil {
		log.Fatalf("creating log file: %v", err)
	}
	defer logFile.Close()

	names := make([]string, len(params.Specs))
	for i, spec := range params.Specs {
		names[i] = spec.Name
	}
	evals, err := newEvalLog(logFile, os.Stdout, names, *maxEvals)
	if err != nil {
		log.Fatal(err)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			point := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(point)
			if err := evals.record(point, fitness, evaluator.LastQuality()); err != nil {
				log.Printf("writing log row: %v", err)
			}
			return fitness
		},
	}

	pop := *population
	if pop == 0 {
		pop = 4 + 3*params.Dim()/2
	}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: pop}
	// Evaluations run one at a time; each already fans its seeds out.
	settings := &optimize.Settings{FuncEvaluations: *maxEvals}

	fmt.Printf("CMA-ES over %d parameters, population %d, %d evaluations max\n", params.Dim(), pop, *maxEvals)
	fmt.Printf("%d seeds x %d ticks per evaluation, target coverage %.2f\n", *seeds, *maxTicks, *coverage)

	result, err := optimize.Minimize(problem, params.Normalize(params.Clamp(start)), settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	best := evals.bestX
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		log.Fatal("no evaluation completed")
	}

	fmt.Printf("\ndone: %d evaluations in %s, best quality %.3f\n",
		evals.count, formatDuration(time.Since(evals.started)), -evals.best)
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, best[i])
	}

	// Apply to a fresh load so unrelated fields keep their file values.
	out, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("reloading config: %v", err)
	}
	if err := params.ApplyToConfig(out, best); err != nil {
		log.Fatal(err)
	}
	path := filepath.Join(*outputDir, "best_config.yaml")
	if err := out.WriteYAML(path); err != nil {
		log.Printf("writing best config: %v", err)
		return
	}
	fmt.Printf("best config written to %s\n", path)
}
