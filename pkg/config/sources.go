package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
	"github.com/g-uva/kube-carbon-scheduler/pkg/datasource"
	"github.com/g-uva/kube-carbon-scheduler/pkg/engine"
	"github.com/g-uva/kube-carbon-scheduler/pkg/loader"
)

// BuildSources instantiates every configured provider. Identical entries
// across the three lists share one provider.
func (c *Config) BuildSources(log zerolog.Logger) (engine.Sources, error) {
	built := map[SourceConfig]datasource.Provider{}
	get := func(sc SourceConfig) (datasource.Provider, error) {
		if p, ok := built[sc]; ok {
			return p, nil
		}
		p, err := c.buildSource(sc, log)
		if err != nil {
			return nil, err
		}
		built[sc] = p
		return p, nil
	}

	var src engine.Sources
	for _, sc := range c.Sources.Intensity {
		p, err := get(sc)
		if err != nil {
			return engine.Sources{}, err
		}
		src.Intensity = append(src.Intensity, p)
	}
	for _, sc := range c.Sources.Forecast {
		p, err := get(sc)
		if err != nil {
			return engine.Sources{}, err
		}
		src.Forecast = append(src.Forecast, p)
	}
	for _, sc := range c.Sources.Regions {
		p, err := get(sc)
		if err != nil {
			return engine.Sources{}, err
		}
		src.Regions = append(src.Regions, p)
	}
	return src, nil
}

func (c *Config) buildSource(sc SourceConfig, log zerolog.Logger) (datasource.Provider, error) {
	switch sc.Kind {
	case KindCarbonIntensity:
		client := datasource.NewCarbonIntensityClient(sc.URL)
		client.RegionNames = c.numericZones()
		return client, nil

	case KindElectricityMaps:
		token := os.Getenv(sc.TokenEnv)
		if token == "" {
			return nil, fmt.Errorf("electricitymaps: environment variable %s is empty", sc.TokenEnv)
		}
		client := datasource.NewElectricityMapsClient(sc.URL, token, c.Zones())
		client.ForecastZone = sc.ForecastZone
		client.Log = log.With().Str("source", client.Name()).Logger()
		return client, nil

	case KindStatic:
		var (
			regions  []core.GridReading
			forecast []core.ForecastPoint
			err      error
		)
		if sc.RegionsFile != "" {
			if regions, err = loader.LoadRegions(sc.RegionsFile); err != nil {
				return nil, fmt.Errorf("static source: %w", err)
			}
			loader.AttachZones(regions, core.NewProfiles(c.Regions))
		}
		if sc.ForecastFile != "" {
			if forecast, err = loader.LoadForecast(sc.ForecastFile); err != nil {
				return nil, fmt.Errorf("static source: %w", err)
			}
		}
		return datasource.NewStatic("static", regions, forecast), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
}

// numericZones maps profiles whose zone is a carbonintensity.org.uk regionid
// back to their region ID.
func (c *Config) numericZones() map[int]string {
	out := map[int]string{}
	for _, r := range c.Regions {
		if id, err := strconv.Atoi(r.ZoneID); err == nil {
			out[id] = r.ID
		}
	}
	return out
}
