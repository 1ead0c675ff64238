// Package loader reads grid snapshots, forecasts and region profiles from CSV.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

var (
	RegionsHeader   = []string{"region", "grid_intensity", "zone"}
	ForecastHeader  = []string{"from", "to", "intensity", "index"}
	WorkloadsHeader = []string{"id", "submit", "region", "criticality"}
	ProfilesHeader  = []string{"id", "overhead_factor", "renewable_fraction", "zone"}
)

func readAll(path string, minFields int, each func(line int, rec []string) error) error {
	f, err := open(context.Background(), path)
	if err != nil {
		return err
	}
	defer f.Close()
	return read(f, path, minFields, each)
}

func read(in io.Reader, name string, minFields int, each func(line int, rec []string) error) error {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty file", name)
		}
		return fmt.Errorf("%s: read header: %w", name, err)
	}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: read record: %w", name, err)
		}
		if len(rec) < minFields {
			return fmt.Errorf("%s:%d: want %d fields, got %d", name, line, minFields, len(rec))
		}
		if err := each(line, rec); err != nil {
			return fmt.Errorf("%s:%d: %w", name, line, err)
		}
	}
}

// LoadRegions parses a CSV of:
//
//	region,grid_intensity,zone
func LoadRegions(path string) ([]core.GridReading, error) {
	var out []core.GridReading
	err := readAll(path, 2, func(_ int, rec []string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return fmt.Errorf("grid_intensity: %w", err)
		}
		r := core.GridReading{RegionID: strings.TrimSpace(rec[0]), GridIntensity: v}
		if len(rec) > 2 {
			r.ZoneID = strings.TrimSpace(rec[2])
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// LoadForecast parses a CSV of:
//
//	from,to,intensity,index
//
// with RFC 3339 timestamps. Rows are expected in time order.
func LoadForecast(path string) ([]core.ForecastPoint, error) {
	var out []core.ForecastPoint
	err := readAll(path, 3, func(_ int, rec []string) error {
		from, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[0]))
		if err != nil {
			return fmt.Errorf("from: %w", err)
		}
		to, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[1]))
		if err != nil {
			return fmt.Errorf("to: %w", err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return fmt.Errorf("intensity: %w", err)
		}
		p := core.ForecastPoint{TimeFrom: from, TimeTo: to, RawIntensity: v}
		if len(rec) > 3 {
			p.Index = strings.TrimSpace(rec[3])
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// LoadWorkloads parses a CSV of:
//
//	id,submit,region,criticality
//
// An empty criticality means NORMAL.
func LoadWorkloads(path string) ([]core.Request, error) {
	var out []core.Request
	err := readAll(path, 3, func(_ int, rec []string) error {
		submit, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[1]))
		if err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		crit := core.Normal
		if len(rec) > 3 {
			if crit, err = core.ParseCriticality(rec[3]); err != nil {
				return err
			}
		}
		req := core.Request{
			Workload:    strings.TrimSpace(rec[0]),
			Region:      strings.TrimSpace(rec[2]),
			Criticality: crit,
			SubmitTime:  submit,
		}
		if err := req.Validate(); err != nil {
			return err
		}
		out = append(out, req)
		return nil
	})
	return out, err
}
