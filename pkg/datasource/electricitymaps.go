package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

const (
	DefaultElectricityMapsURL = "https://api.electricitymap.org"
	electricityMapsFanout     = 4
)

// ElectricityMapsClient reads zone intensities from the Electricity Maps v3
// API. Zones maps local region IDs to Electricity Maps zone codes.
type ElectricityMapsClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Zones   map[string]string
	// ForecastZone is the zone whose forecast Forecast returns.
	ForecastZone string
	Log          zerolog.Logger
}

func NewElectricityMapsClient(baseURL, token string, zones map[string]string) *ElectricityMapsClient {
	if baseURL == "" {
		baseURL = DefaultElectricityMapsURL
	}
	return &ElectricityMapsClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    defaultClient(nil),
		Zones:   zones,
		Log:     zerolog.Nop(),
	}
}

func (c *ElectricityMapsClient) Name() string { return "electricitymaps" }

type emLatest struct {
	Zone            string    `json:"zone"`
	CarbonIntensity *float64  `json:"carbonIntensity"`
	Datetime        time.Time `json:"datetime"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type emForecast struct {
	Zone     string `json:"zone"`
	Forecast []struct {
		CarbonIntensity *float64  `json:"carbonIntensity"`
		Datetime        time.Time `json:"datetime"`
	} `json:"forecast"`
}

func (c *ElectricityMapsClient) headers() map[string]string {
	if c.Token == "" {
		return nil
	}
	return map[string]string{"auth-token": c.Token}
}

func (c *ElectricityMapsClient) zone(region string) string {
	if z, ok := c.Zones[region]; ok && z != "" {
		return z
	}
	return region
}

func (c *ElectricityMapsClient) latest(ctx context.Context, zone string) (emLatest, error) {
	u := fmt.Sprintf("%s/v3/carbon-intensity/latest?zone=%s", c.BaseURL, url.QueryEscape(zone))
	var body emLatest
	if err := getJSON(ctx, defaultClient(c.HTTP), u, c.headers(), &body); err != nil {
		return emLatest{}, fmt.Errorf("%s: zone %s: %w", c.Name(), zone, err)
	}
	if body.CarbonIntensity == nil {
		return emLatest{}, fmt.Errorf("%s: zone %s: %w", c.Name(), zone, ErrNoData)
	}
	return body, nil
}

func (c *ElectricityMapsClient) CurrentIntensity(ctx context.Context, region string) (Reading, error) {
	body, err := c.latest(ctx, c.zone(region))
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Region:     region,
		Value:      *body.CarbonIntensity,
		Index:      QualitativeIndex(*body.CarbonIntensity),
		Provenance: c.Name(),
		At:         body.Datetime,
	}, nil
}

// Regions fetches every configured zone concurrently. Zones that fail are
// logged and left out; only a complete failure is an error.
func (c *ElectricityMapsClient) Regions(ctx context.Context) ([]core.GridReading, error) {
	if len(c.Zones) == 0 {
		return nil, fmt.Errorf("%s: no zones configured: %w", c.Name(), ErrNoData)
	}

	var (
		mu  sync.Mutex
		out = make([]core.GridReading, 0, len(c.Zones))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(electricityMapsFanout)
	for region, zone := range c.Zones {
		region, zone := region, zone
		g.Go(func() error {
			body, err := c.latest(gctx, zone)
			if err != nil {
				c.Log.Warn().Err(err).Str("region", region).Msg("zone fetch failed")
				return nil
			}
			mu.Lock()
			out = append(out, core.GridReading{
				RegionID:      region,
				ZoneID:        zone,
				GridIntensity: *body.CarbonIntensity,
				Index:         QualitativeIndex(*body.CarbonIntensity),
				UpdatedAt:     body.UpdatedAt,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: regions: %w", c.Name(), ErrNoData)
	}
	return out, nil
}

func (c *ElectricityMapsClient) Forecast(ctx context.Context, hours int) ([]core.ForecastPoint, error) {
	if c.ForecastZone == "" {
		return nil, fmt.Errorf("%s: no forecast zone configured: %w", c.Name(), ErrNoData)
	}
	u := fmt.Sprintf("%s/v3/carbon-intensity/forecast?zone=%s", c.BaseURL, url.QueryEscape(c.ForecastZone))
	var body emForecast
	if err := getJSON(ctx, defaultClient(c.HTTP), u, c.headers(), &body); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	points := make([]core.ForecastPoint, 0, len(body.Forecast))
	for _, f := range body.Forecast {
		if f.CarbonIntensity == nil {
			continue
		}
		points = append(points, core.ForecastPoint{
			TimeFrom:     f.Datetime,
			TimeTo:       f.Datetime.Add(time.Hour),
			RawIntensity: *f.CarbonIntensity,
			Index:        QualitativeIndex(*f.CarbonIntensity),
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: forecast: %w", c.Name(), ErrNoData)
	}
	if hours > 0 {
		horizon := points[0].TimeFrom.Add(time.Duration(hours) * time.Hour)
		for i, p := range points {
			if p.TimeFrom.After(horizon) {
				points = points[:i]
				break
			}
		}
	}
	return points, nil
}
