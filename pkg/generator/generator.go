// Package generator writes synthetic grid and workload CSVs for simulations.
package generator

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
	"github.com/g-uva/kube-carbon-scheduler/pkg/datasource"
	"github.com/g-uva/kube-carbon-scheduler/pkg/loader"
)

// SineProfile is a daily-shaped intensity curve: mean + amp·sin(2πt/period),
// plus uniform noise in [-noise, noise].
type SineProfile struct {
	Mean   float64
	Amp    float64
	Period time.Duration
	Noise  float64
}

// At evaluates the profile at t. Results are never negative.
func (p SineProfile) At(t time.Time, rng *rand.Rand) float64 {
	v := p.Mean
	if p.Period > 0 {
		sec := int64(p.Period / time.Second)
		if sec > 0 {
			theta := 2 * math.Pi * float64(t.Unix()%sec) / float64(sec)
			v += p.Amp * math.Sin(theta)
		}
	}
	if p.Noise > 0 && rng != nil {
		v += (rng.Float64()*2 - 1) * p.Noise
	}
	return math.Max(0, v)
}

// RegionSpec describes one synthetic region.
type RegionSpec struct {
	ID        string
	Zone      string
	Profile   SineProfile
	Overhead  float64
	Renewable float64
}

// DefaultRegions spans a clean hydro grid to a coal-heavy one.
func DefaultRegions() []RegionSpec {
	day := 24 * time.Hour
	return []RegionSpec{
		{ID: "eu-north", Zone: "SE", Profile: SineProfile{Mean: 40, Amp: 10, Period: day, Noise: 5}, Overhead: 1.1, Renewable: 0.3},
		{ID: "eu-west", Zone: "FR", Profile: SineProfile{Mean: 90, Amp: 30, Period: day, Noise: 10}, Overhead: 1.2, Renewable: 0.1},
		{ID: "eu-central", Zone: "DE", Profile: SineProfile{Mean: 380, Amp: 120, Period: day, Noise: 25}, Overhead: 1.3, Renewable: 0.2},
		{ID: "uk-south", Zone: "GB", Profile: SineProfile{Mean: 220, Amp: 90, Period: day, Noise: 20}, Overhead: 1.25},
		{ID: "ap-south", Zone: "IN-SO", Profile: SineProfile{Mean: 620, Amp: 60, Period: day, Noise: 30}, Overhead: 1.6},
	}
}

func create(path string) (*os.File, *csv.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating dirs for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("os.Create(%s): %w", path, err)
	}
	return f, csv.NewWriter(f), nil
}

func finish(f *os.File, w *csv.Writer) error {
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", f.Name(), err)
	}
	return f.Close()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

// GenerateRegions writes {region,grid_intensity,zone} sampled at t.
func GenerateRegions(path string, regions []RegionSpec, t time.Time, seed int64) error {
	f, w, err := create(path)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(seed))

	if err := w.Write(loader.RegionsHeader); err != nil {
		f.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range Sample(regions, t, rng) {
		if err := w.Write([]string{r.RegionID, ff(r.GridIntensity), r.ZoneID}); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", r.RegionID, err)
		}
	}
	return finish(f, w)
}

// RegionProfile is the facility profile of r. An overhead below 1 becomes 1.
func (r RegionSpec) RegionProfile() core.RegionProfile {
	overhead := r.Overhead
	if overhead < 1 {
		overhead = 1
	}
	return core.RegionProfile{ID: r.ID, ZoneID: r.Zone, OverheadFactor: overhead, RenewableFraction: r.Renewable}
}

// Sample draws one grid reading per region at t.
func Sample(regions []RegionSpec, t time.Time, rng *rand.Rand) []core.GridReading {
	out := make([]core.GridReading, 0, len(regions))
	for _, r := range regions {
		v := r.Profile.At(t, rng)
		out = append(out, core.GridReading{
			RegionID:      r.ID,
			ZoneID:        r.Zone,
			GridIntensity: v,
			Index:         datasource.QualitativeIndex(v),
			UpdatedAt:     t,
		})
	}
	return out
}

// GenerateProfiles writes {id,overhead_factor,renewable_fraction,zone}.
func GenerateProfiles(path string, regions []RegionSpec) error {
	f, w, err := create(path)
	if err != nil {
		return err
	}
	if err := w.Write(loader.ProfilesHeader); err != nil {
		f.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range regions {
		p := r.RegionProfile()
		rec := []string{p.ID, strconv.FormatFloat(p.OverheadFactor, 'f', 2, 64), strconv.FormatFloat(p.RenewableFraction, 'f', 2, 64), p.ZoneID}
		if err := w.Write(rec); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", r.ID, err)
		}
	}
	return finish(f, w)
}

// Forecast samples p every step for hours, starting at start.
func Forecast(p SineProfile, start time.Time, hours int, step time.Duration, seed int64) []core.ForecastPoint {
	if step <= 0 {
		step = 30 * time.Minute
	}
	rng := rand.New(rand.NewSource(seed))
	end := start.Add(time.Duration(hours) * time.Hour)
	var out []core.ForecastPoint
	for t := start; t.Before(end); t = t.Add(step) {
		v := p.At(t, rng)
		out = append(out, core.ForecastPoint{TimeFrom: t, TimeTo: t.Add(step), RawIntensity: v, Index: datasource.QualitativeIndex(v)})
	}
	return out
}

// GenerateForecast writes {from,to,intensity,index}.
func GenerateForecast(path string, points []core.ForecastPoint) error {
	f, w, err := create(path)
	if err != nil {
		return err
	}
	if err := w.Write(loader.ForecastHeader); err != nil {
		f.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for _, p := range points {
		rec := []string{p.TimeFrom.Format(time.RFC3339), p.TimeTo.Format(time.RFC3339), ff(p.RawIntensity), p.Index}
		if err := w.Write(rec); err != nil {
			f.Close()
			return fmt.Errorf("writing point %s: %w", rec[0], err)
		}
	}
	return finish(f, w)
}

// GenerateWorkloads writes n requests {id,submit,region,criticality} with
// Poisson arrivals (λ = 1/min) spread over regions.
func GenerateWorkloads(path string, n int, regions []RegionSpec, start time.Time, seed int64) error {
	if len(regions) == 0 {
		return fmt.Errorf("no regions to place workloads in")
	}
	f, w, err := create(path)
	if err != nil {
		return err
	}
	if err := w.Write(loader.WorkloadsHeader); err != nil {
		f.Close()
		return fmt.Errorf("writing header: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))
	now := start
	for i := 0; i < n; i++ {
		var crit core.Criticality
		switch x := rng.Intn(10); {
		case x == 0:
			crit = core.Critical
		case x < 3:
			crit = core.High
		case x < 7:
			crit = core.Normal
		default:
			crit = core.Low
		}
		now = now.Add(time.Duration(rng.ExpFloat64() * float64(time.Minute)))
		region := regions[rng.Intn(len(regions))].ID
		rec := []string{fmt.Sprintf("job-%d", i), now.Format(time.RFC3339), region, crit.String()}
		if err := w.Write(rec); err != nil {
			f.Close()
			return fmt.Errorf("writing job-%d: %w", i, err)
		}
	}
	return finish(f, w)
}
