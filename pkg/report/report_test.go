package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sample() []core.SchedulingDecision {
	later := now.Add(2 * time.Hour)
	return []core.SchedulingDecision{
		{ID: "1", WorkloadName: "etl", Criticality: core.Normal, CurrentRegion: "eu-west", Strategy: core.TimeShift,
			TargetRegion: "eu-west", ScheduledTime: &later, WaitHours: 2, CurrentIntensity: 300, TargetIntensity: 100,
			SavingsPercent: 66.7, DataSources: []string{"static", "forecast"}, Rationale: "delay, then run", DecidedAt: now},
		{ID: "2", WorkloadName: "web", Criticality: core.Critical, CurrentRegion: "eu-west", Strategy: core.RunNow,
			TargetRegion: "eu-west", CurrentIntensity: 300, TargetIntensity: 300, DecidedAt: now},
		{ID: "3", WorkloadName: "train", Criticality: core.Low, CurrentRegion: "eu-west", Strategy: core.RunNow,
			TargetRegion: "eu-west", Error: "no data", DecidedAt: now},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "TIME_SHIFT", rows[1][5])
	assert.Equal(t, "2024-03-01T14:00:00Z", rows[1][7])
	assert.Equal(t, "static;forecast", rows[1][12])
	assert.Equal(t, "delay, then run", rows[1][14])
	assert.Equal(t, "", rows[2][7])
	assert.Equal(t, "no data", rows[3][13])
}

func TestExportCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	path, err := ExportCSV(dir, sample(), now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "20240301-120000_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "TIME_SHIFT")
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, sample())
	out := buf.String()
	assert.Contains(t, out, "Scheduling Decision Summary")
	assert.Contains(t, out, "CRITICAL")
	assert.Equal(t, 5, strings.Count(out, "\n"))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.ByStrategy[core.TimeShift])
	assert.Equal(t, 1, s.ByStrategy[core.RunNow])
	assert.InDelta(t, 33.35, s.AverageSavings, 1e-9)
	assert.InDelta(t, 200, s.AvoidedPerKWh, 1e-9)
	assert.InDelta(t, 1.0, s.AvoidedKg(5), 1e-9)

	var buf bytes.Buffer
	s.Print(&buf)
	assert.Contains(t, buf.String(), "failed 1")
	assert.Contains(t, buf.String(), "-> eu-west")

	assert.Zero(t, Summarize(nil).AverageSavings)
}
