// Package report renders decisions as CSV and console tables.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

var csvHeader = []string{
	"DecidedAt", "ID", "Workload", "Criticality", "CurrentRegion", "Strategy", "TargetRegion",
	"ScheduledTime", "WaitHours", "CurrentIntensity", "TargetIntensity", "SavingsPercent",
	"DataSources", "Error", "Rationale",
}

// WriteCSV writes one row per decision.
func WriteCSV(w io.Writer, decisions []core.SchedulingDecision) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, d := range decisions {
		scheduled := ""
		if d.ScheduledTime != nil {
			scheduled = d.ScheduledTime.Format(time.RFC3339)
		}
		row := []string{
			d.DecidedAt.Format(time.RFC3339),
			d.ID,
			d.WorkloadName,
			d.Criticality.String(),
			d.CurrentRegion,
			string(d.Strategy),
			d.TargetRegion,
			scheduled,
			fmt.Sprintf("%.2f", d.WaitHours),
			fmt.Sprintf("%.2f", d.CurrentIntensity),
			fmt.Sprintf("%.2f", d.TargetIntensity),
			fmt.Sprintf("%.2f", d.SavingsPercent),
			strings.Join(d.DataSources, ";"),
			d.Error,
			d.Rationale,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing %s: %w", d.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes decisions to a fresh file under dir and returns its path.
func ExportCSV(dir string, decisions []core.SchedulingDecision, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	name := fmt.Sprintf("%s_%s_decisions.csv", now.Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(f, decisions); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// PrintTable writes a fixed-width decision summary.
func PrintTable(w io.Writer, decisions []core.SchedulingDecision) {
	fmt.Fprintln(w, "================= Scheduling Decision Summary =================")
	fmt.Fprintf(w, "%-14s %-9s %-12s %-12s %-12s %-7s %-9s %-9s\n",
		"Workload", "Crit", "Strategy", "From", "To", "Wait h", "Current", "Saved %")
	for _, d := range decisions {
		fmt.Fprintf(w, "%-14s %-9s %-12s %-12s %-12s %-7.1f %-9.1f %-9.1f\n",
			d.WorkloadName, d.Criticality, d.Strategy, d.CurrentRegion, d.TargetRegion,
			d.WaitHours, d.CurrentIntensity, d.SavingsPercent)
	}
}

// Summary aggregates a batch of decisions.
type Summary struct {
	Total          int
	Failed         int
	ByStrategy     map[core.StrategyKind]int
	ByTarget       map[string]int
	AverageSavings float64
	// AvoidedPerKWh sums current minus target intensity, in gCO2 per kWh
	// drawn by each workload.
	AvoidedPerKWh float64
}

func Summarize(decisions []core.SchedulingDecision) Summary {
	s := Summary{ByStrategy: map[core.StrategyKind]int{}, ByTarget: map[string]int{}}
	var savings float64
	for _, d := range decisions {
		s.Total++
		if d.Failed() {
			s.Failed++
			continue
		}
		s.ByStrategy[d.Strategy]++
		s.ByTarget[d.TargetRegion]++
		savings += d.SavingsPercent
		s.AvoidedPerKWh += d.AvoidedGrams(1)
	}
	if ok := s.Total - s.Failed; ok > 0 {
		s.AverageSavings = savings / float64(ok)
	}
	return s
}

// AvoidedKg estimates total avoided emissions when every workload draws
// energyKWh.
func (s Summary) AvoidedKg(energyKWh float64) float64 {
	return s.AvoidedPerKWh * energyKWh / 1000
}

func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "decisions: %d (failed %d), average savings %.1f%%\n", s.Total, s.Failed, s.AverageSavings)
	for _, k := range []core.StrategyKind{core.RunNow, core.TimeShift, core.SpaceShift, core.Hybrid} {
		fmt.Fprintf(w, "  %-12s %d\n", k, s.ByStrategy[k])
	}
	targets := make([]string, 0, len(s.ByTarget))
	for t := range s.ByTarget {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	for _, t := range targets {
		fmt.Fprintf(w, "  -> %-12s %d\n", t, s.ByTarget[t])
	}
}
