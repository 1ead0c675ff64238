package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
	"github.com/g-uva/kube-carbon-scheduler/pkg/report"
)

func newDecideCommand(g *globals) *cobra.Command {
	var (
		workload    string
		region      string
		criticality string
		format      string
		offline     offlineFlags
	)

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Decide once for a single workload",
		Long: `Decide once for a single workload and print the decision.

Grid data comes from the sources in --config, or from local CSVs given
with --regions-csv and --forecast-csv.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			crit, err := core.ParseCriticality(criticality)
			if err != nil {
				return err
			}
			req := core.Request{Workload: workload, Region: region, Criticality: crit}
			if err := req.Validate(); err != nil {
				return err
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q (use table or json)", format)
			}

			cfg, err := g.loadConfig(offline)
			if err != nil {
				return err
			}
			e, err := g.buildEngine(cfg)
			if err != nil {
				return err
			}

			d := e.Decide(cmd.Context(), req.Workload, req.Region, req.Criticality)
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			printDecision(cmd.OutOrStdout(), d)
			return nil
		},
	}

	cmd.Flags().StringVarP(&workload, "workload", "w", "", "Workload name")
	cmd.Flags().StringVarP(&region, "region", "r", "", "Region the workload would run in now")
	cmd.Flags().StringVar(&criticality, "criticality", "NORMAL", "CRITICAL, HIGH, NORMAL or LOW")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	offline.register(cmd)
	_ = cmd.MarkFlagRequired("workload")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

func printDecision(w io.Writer, d core.SchedulingDecision) {
	report.PrintTable(w, []core.SchedulingDecision{d})
	fmt.Fprintln(w)
	for _, o := range d.Options {
		fmt.Fprintf(w, "  %-12s %-12s score %.3f  saves %.1f%%\n", o.Strategy, o.TargetRegion, o.Score, o.SavingsPercent)
	}
	fmt.Fprintf(w, "\n%s\n", d.Rationale)
	if d.Error != "" {
		fmt.Fprintf(w, "error: %s\n", d.Error)
	}
}
