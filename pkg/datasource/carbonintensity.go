package datasource

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

const (
	DefaultCarbonIntensityURL = "https://api.carbonintensity.org.uk"
	carbonIntensityTimeLayout = "2006-01-02T15:04Z"
)

// CarbonIntensityClient reads the GB grid from carbonintensity.org.uk. The
// national curve serves as current intensity and forecast; /regional
// supplies the per-region readings.
type CarbonIntensityClient struct {
	BaseURL string
	HTTP    *http.Client
	Clock   clock.PassiveClock
	// RegionNames maps the API's numeric regionid to a local region ID.
	// Unmapped regions use the API shortname.
	RegionNames map[int]string
}

func NewCarbonIntensityClient(baseURL string) *CarbonIntensityClient {
	if baseURL == "" {
		baseURL = DefaultCarbonIntensityURL
	}
	return &CarbonIntensityClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    defaultClient(nil),
		Clock:   clock.RealClock{},
	}
}

func (c *CarbonIntensityClient) Name() string { return "carbonintensity.org.uk" }

type ciTime struct{ time.Time }

func (t *ciTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := time.Parse(carbonIntensityTimeLayout, s)
	if err != nil {
		v, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}
	t.Time = v
	return nil
}

type ciIntensity struct {
	Forecast *float64 `json:"forecast"`
	Actual   *float64 `json:"actual"`
	Index    string   `json:"index"`
}

func (i ciIntensity) value() (float64, bool) {
	if i.Actual != nil {
		return *i.Actual, true
	}
	if i.Forecast != nil {
		return *i.Forecast, true
	}
	return 0, false
}

type ciPeriod struct {
	From      ciTime      `json:"from"`
	To        ciTime      `json:"to"`
	Intensity ciIntensity `json:"intensity"`
}

type ciMix struct {
	Fuel string  `json:"fuel"`
	Perc float64 `json:"perc"`
}

type ciRegion struct {
	RegionID      int         `json:"regionid"`
	DNORegion     string      `json:"dnoregion"`
	ShortName     string      `json:"shortname"`
	Intensity     ciIntensity `json:"intensity"`
	GenerationMix []ciMix     `json:"generationmix"`
}

type ciRegionalPeriod struct {
	From    ciTime     `json:"from"`
	To      ciTime     `json:"to"`
	Regions []ciRegion `json:"regions"`
}

func (c *CarbonIntensityClient) client() *http.Client { return defaultClient(c.HTTP) }

func (c *CarbonIntensityClient) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

// CurrentIntensity ignores region: the API's headline figure is national.
func (c *CarbonIntensityClient) CurrentIntensity(ctx context.Context, region string) (Reading, error) {
	var body struct {
		Data []ciPeriod `json:"data"`
	}
	if err := getJSON(ctx, c.client(), c.BaseURL+"/intensity", nil, &body); err != nil {
		return Reading{}, fmt.Errorf("%s: %w", c.Name(), err)
	}
	if len(body.Data) == 0 {
		return Reading{}, fmt.Errorf("%s: current: %w", c.Name(), ErrNoData)
	}
	v, ok := body.Data[0].Intensity.value()
	if !ok {
		return Reading{}, fmt.Errorf("%s: current: %w", c.Name(), ErrNoData)
	}
	return Reading{
		Region:     region,
		Value:      v,
		Index:      body.Data[0].Intensity.Index,
		Provenance: c.Name(),
		At:         body.Data[0].From.Time,
	}, nil
}

// Forecast returns the forward 48h curve, truncated to hours.
func (c *CarbonIntensityClient) Forecast(ctx context.Context, hours int) ([]core.ForecastPoint, error) {
	start := c.now().UTC()
	url := fmt.Sprintf("%s/intensity/%s/fw48h", c.BaseURL, start.Format(carbonIntensityTimeLayout))

	var body struct {
		Data []ciPeriod `json:"data"`
	}
	if err := getJSON(ctx, c.client(), url, nil, &body); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	horizon := start.Add(time.Duration(hours) * time.Hour)
	points := make([]core.ForecastPoint, 0, len(body.Data))
	for _, p := range body.Data {
		v, ok := p.Intensity.value()
		if !ok {
			continue
		}
		if hours > 0 && p.From.After(horizon) {
			break
		}
		points = append(points, core.ForecastPoint{
			TimeFrom:     p.From.Time,
			TimeTo:       p.To.Time,
			RawIntensity: v,
			Index:        p.Intensity.Index,
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: forecast: %w", c.Name(), ErrNoData)
	}
	return points, nil
}

func (c *CarbonIntensityClient) Regions(ctx context.Context) ([]core.GridReading, error) {
	var body struct {
		Data []ciRegionalPeriod `json:"data"`
	}
	if err := getJSON(ctx, c.client(), c.BaseURL+"/regional", nil, &body); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("%s: regions: %w", c.Name(), ErrNoData)
	}

	period := body.Data[0]
	out := make([]core.GridReading, 0, len(period.Regions))
	for _, r := range period.Regions {
		v, ok := r.Intensity.value()
		if !ok {
			continue
		}
		id, mapped := c.RegionNames[r.RegionID]
		if !mapped {
			id = r.ShortName
		}
		mix := make(map[string]float64, len(r.GenerationMix))
		for _, m := range r.GenerationMix {
			mix[m.Fuel] = m.Perc
		}
		out = append(out, core.GridReading{
			RegionID:      id,
			ZoneID:        strconv.Itoa(r.RegionID),
			GridIntensity: v,
			Index:         r.Intensity.Index,
			GenerationMix: mix,
			UpdatedAt:     period.From.Time,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: regions: %w", c.Name(), ErrNoData)
	}
	return out, nil
}
