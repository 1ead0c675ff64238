package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/g-uva/kube-carbon-scheduler/pkg/config"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
	"github.com/g-uva/kube-carbon-scheduler/pkg/datasource"
	"github.com/g-uva/kube-carbon-scheduler/pkg/engine"
	"github.com/g-uva/kube-carbon-scheduler/pkg/generator"
	"github.com/g-uva/kube-carbon-scheduler/pkg/loader"
	"github.com/g-uva/kube-carbon-scheduler/pkg/report"
)

type simulateOptions struct {
	runs         int
	workloadsCSV string
	out          string
	resultsDir   string
	seed         int64
	start        string
	table        bool
	energyKWh    float64
}

func newSimulateCommand(g *globals) *cobra.Command {
	o := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay workloads against synthetic grid data",
		Long: `Replay a stream of workloads against synthetic, time-varying grid data
and write one CSV row per decision plus a summary.

The clock is advanced to each workload's submit time. Engine tunables come
from --config when given; its sources are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.DefaultOptions()
			if g.configPath != "" {
				cfg, err := config.Load(g.configPath)
				if err != nil {
					return err
				}
				opts = cfg.EngineOptions()
			}
			decisions, err := g.simulate(cmd.Context(), o, opts)
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), o, decisions)
		},
	}

	cmd.Flags().IntVarP(&o.runs, "runs", "n", 100, "Number of decisions")
	cmd.Flags().StringVar(&o.workloadsCSV, "workloads-csv", "", "Workloads CSV (generated when empty)")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Decision CSV path (default: a new file under --results-dir)")
	cmd.Flags().StringVar(&o.resultsDir, "results-dir", "results", "Directory for generated result files")
	cmd.Flags().Int64Var(&o.seed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&o.start, "start", "2024-01-01T00:00:00Z", "Simulation start time (RFC3339)")
	cmd.Flags().BoolVar(&o.table, "table", false, "Print every decision, not only the summary")
	cmd.Flags().Float64Var(&o.energyKWh, "energy-kwh", 1, "Energy drawn by each workload, for the emissions estimate")

	return cmd
}

func (g *globals) simulate(ctx context.Context, o simulateOptions, opts engine.Options) ([]core.SchedulingDecision, error) {
	if o.runs <= 0 {
		return nil, fmt.Errorf("--runs must be positive")
	}
	start, err := time.Parse(time.RFC3339, o.start)
	if err != nil {
		return nil, fmt.Errorf("--start: %w", err)
	}

	regions := generator.DefaultRegions()
	reqs, err := simulationWorkloads(o, regions, start)
	if err != nil {
		return nil, err
	}

	if len(opts.Profiles) == 0 {
		profiles := make([]core.RegionProfile, 0, len(regions))
		for _, r := range regions {
			profiles = append(profiles, r.RegionProfile())
		}
		opts.Profiles = core.NewProfiles(profiles)
	}
	// grid data changes between decisions
	opts.CacheTTL = 0

	static := datasource.NewStatic("simulation", nil, nil)
	clk := clocktesting.NewFakeClock(start)
	e, err := engine.New(opts, engine.Sources{
		Intensity: []datasource.IntensitySource{static},
		Forecast:  []datasource.ForecastSource{static},
		Regions:   []datasource.RegionSource{static},
	}, engine.WithLogger(g.log), engine.WithClock(clk))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]generator.RegionSpec, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}

	out := make([]core.SchedulingDecision, 0, len(reqs))
	for i, r := range reqs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		seed := o.seed + int64(i)
		at := r.SubmitTime
		if at.IsZero() {
			at = start.Add(time.Duration(i) * time.Minute)
		}
		clk.SetTime(at)

		var forecast []core.ForecastPoint
		if spec, ok := byID[r.Region]; ok {
			forecast = generator.Forecast(spec.Profile, at, opts.ForecastHours, 30*time.Minute, seed)
		}
		static.Set(generator.Sample(regions, at, rand.New(rand.NewSource(seed))), forecast)

		out = append(out, e.Decide(ctx, r.Workload, r.Region, r.Criticality))
	}
	g.log.Debug().Int("decisions", len(out)).Msg("simulation finished")
	return out, nil
}

func simulationWorkloads(o simulateOptions, regions []generator.RegionSpec, start time.Time) ([]core.Request, error) {
	path := o.workloadsCSV
	if path == "" {
		dir, err := os.MkdirTemp("", "carbonsched-sim")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "workloads.csv")
		if err := generator.GenerateWorkloads(path, o.runs, regions, start, o.seed); err != nil {
			return nil, err
		}
	}
	reqs, err := loader.LoadWorkloads(path)
	if err != nil {
		return nil, err
	}
	if len(reqs) > o.runs {
		reqs = reqs[:o.runs]
	}
	return reqs, nil
}

func writeResults(w io.Writer, o simulateOptions, decisions []core.SchedulingDecision) error {
	path := o.out
	if path == "" {
		var err error
		if path, err = report.ExportCSV(o.resultsDir, decisions, time.Now()); err != nil {
			return err
		}
	} else if err := writeFile(path, func(f io.Writer) error { return report.WriteCSV(f, decisions) }); err != nil {
		return err
	}

	if o.table {
		report.PrintTable(w, decisions)
		fmt.Fprintln(w)
	}
	sum := report.Summarize(decisions)
	sum.Print(w)
	fmt.Fprintf(w, "estimated avoided emissions: %.2f kgCO2 at %.2f kWh per workload\n", sum.AvoidedKg(o.energyKWh), o.energyKWh)
	fmt.Fprintf(w, "decisions written to %s\n", path)
	return nil
}
