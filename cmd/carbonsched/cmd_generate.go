package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/g-uva/kube-carbon-scheduler/pkg/generator"
)

func newGenerateCommand(g *globals) *cobra.Command {
	var (
		outDir         string
		workloads      int
		hours          int
		seed           int64
		at             string
		forecastRegion string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic grid and workload CSVs",
		Long: `Write synthetic CSVs for offline use:

  regions.csv    one grid reading per region
  forecast.csv   a forecast for --forecast-region
  profiles.csv   facility profiles per region
  workloads.csv  Poisson-arriving workloads

The files can be fed back with --regions-csv, --forecast-csv, --profiles-csv
and --workloads-csv.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			regions := generator.DefaultRegions()
			var spec *generator.RegionSpec
			for i := range regions {
				if regions[i].ID == forecastRegion {
					spec = &regions[i]
				}
			}
			if spec == nil {
				return fmt.Errorf("unknown --forecast-region %q", forecastRegion)
			}

			files := map[string]func(path string) error{
				"regions.csv": func(p string) error { return generator.GenerateRegions(p, regions, t, seed) },
				"forecast.csv": func(p string) error {
					return generator.GenerateForecast(p, generator.Forecast(spec.Profile, t, hours, 30*time.Minute, seed))
				},
				"profiles.csv":  func(p string) error { return generator.GenerateProfiles(p, regions) },
				"workloads.csv": func(p string) error { return generator.GenerateWorkloads(p, workloads, regions, t, seed) },
			}
			for _, name := range []string{"regions.csv", "forecast.csv", "profiles.csv", "workloads.csv"} {
				path := filepath.Join(outDir, name)
				if err := files[name](path); err != nil {
					return err
				}
				g.log.Debug().Str("path", path).Msg("generated")
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "config", "Output directory")
	cmd.Flags().IntVar(&workloads, "workloads", 200, "Number of workloads")
	cmd.Flags().IntVar(&hours, "hours", 48, "Forecast horizon in hours")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&at, "at", "2024-01-01T00:00:00Z", "Snapshot time (RFC3339)")
	cmd.Flags().StringVar(&forecastRegion, "forecast-region", "eu-central", "Region whose forecast is written")

	return cmd
}
