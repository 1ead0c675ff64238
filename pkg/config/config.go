// Package config loads the scheduler's YAML configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/g-uva/kube-carbon-scheduler/models/maizx"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
	"github.com/g-uva/kube-carbon-scheduler/pkg/engine"
	"github.com/g-uva/kube-carbon-scheduler/pkg/loader"
)

// Config holds all configuration for one scheduler process.
type Config struct {
	Engine       EngineConfig         `yaml:"engine"`
	Regions      []core.RegionProfile `yaml:"regions"`
	ProfilesFile string               `yaml:"profiles_file"` // CSV of extra region profiles
	Sources      SourcesConfig        `yaml:"sources"`
	Redis        RedisConfig          `yaml:"redis"`
	HTTP         HTTPConfig           `yaml:"http"`
}

type EngineConfig struct {
	ExcellentThreshold float64       `yaml:"excellent_threshold"`
	MinSavingsPercent  float64       `yaml:"min_savings_percent"`
	TimeShift          bool          `yaml:"time_shift"`
	SpaceShift         bool          `yaml:"space_shift"`
	Hybrid             bool          `yaml:"hybrid"`
	DynamicSlack       bool          `yaml:"dynamic_slack"`
	Alpha              float64       `yaml:"alpha"`
	Weights            maizx.Weights `yaml:"weights"`
	ForecastHours      int           `yaml:"forecast_hours"`
	CacheTTL           Duration      `yaml:"cache_ttl"`
	FetchTimeout       Duration      `yaml:"fetch_timeout"`
	FetchAttempts      int           `yaml:"fetch_attempts"`
}

// SourcesConfig lists providers per kind of data, in fallback order.
type SourcesConfig struct {
	Intensity []SourceConfig `yaml:"intensity"`
	Forecast  []SourceConfig `yaml:"forecast"`
	Regions   []SourceConfig `yaml:"regions"`
}

const (
	KindCarbonIntensity = "carbonintensity"
	KindElectricityMaps = "electricitymaps"
	KindStatic          = "static"
)

type SourceConfig struct {
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`
	// TokenEnv names the environment variable holding the API token.
	TokenEnv     string `yaml:"token_env"`
	ForecastZone string `yaml:"forecast_zone"`
	RegionsFile  string `yaml:"regions_file"`
	ForecastFile string `yaml:"forecast_file"`
}

type RedisConfig struct {
	// URL is redis://... or host:port. Empty keeps history in memory.
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Duration decodes "5m"-style strings.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Default mirrors engine.DefaultOptions and serves on :8080.
func Default() Config {
	o := engine.DefaultOptions()
	return Config{
		Engine: EngineConfig{
			ExcellentThreshold: o.ExcellentThreshold,
			MinSavingsPercent:  o.MinSavingsPercent,
			TimeShift:          o.EnableTimeShift,
			SpaceShift:         o.EnableSpaceShift,
			Hybrid:             o.EnableHybrid,
			DynamicSlack:       o.DynamicSlack,
			Alpha:              o.Alpha,
			Weights:            o.Weights,
			ForecastHours:      o.ForecastHours,
			CacheTTL:           Duration{o.CacheTTL},
			FetchTimeout:       Duration{o.FetchTimeout},
			FetchAttempts:      o.FetchAttempts,
		},
		HTTP: HTTPConfig{Listen: ":8080"},
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.loadProfiles(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadProfiles() error {
	if c.ProfilesFile == "" {
		return nil
	}
	profiles, err := loader.LoadProfiles(c.ProfilesFile)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.Regions = append(c.Regions, profiles[id])
	}
	return nil
}

// Offline builds a validated config that reads everything from local CSVs.
// profilesFile may be empty.
func Offline(regionsFile, forecastFile, profilesFile string) (*Config, error) {
	cfg := Default()
	cfg.ProfilesFile = profilesFile
	static := SourceConfig{Kind: KindStatic, RegionsFile: regionsFile, ForecastFile: forecastFile}
	cfg.Sources.Intensity = []SourceConfig{static}
	if regionsFile != "" {
		cfg.Sources.Regions = []SourceConfig{static}
	}
	if forecastFile != "" {
		cfg.Sources.Forecast = []SourceConfig{static}
	}
	if err := cfg.loadProfiles(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks that all config values are valid.
func (c *Config) validate() error {
	if c.Engine.ExcellentThreshold < 0 {
		return fmt.Errorf("engine.excellent_threshold cannot be negative")
	}
	if c.Engine.MinSavingsPercent < 0 || c.Engine.MinSavingsPercent > 100 {
		return fmt.Errorf("engine.min_savings_percent %.2f outside [0,100]", c.Engine.MinSavingsPercent)
	}
	if c.Engine.ForecastHours <= 0 {
		return fmt.Errorf("engine.forecast_hours must be positive")
	}
	if c.Engine.FetchTimeout.Duration <= 0 {
		return fmt.Errorf("engine.fetch_timeout must be positive")
	}
	if c.Engine.CacheTTL.Duration < 0 {
		return fmt.Errorf("engine.cache_ttl cannot be negative")
	}

	seen := make(map[string]bool, len(c.Regions))
	for _, r := range c.Regions {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.ID] {
			return fmt.Errorf("region %q defined twice", r.ID)
		}
		seen[r.ID] = true
	}

	if len(c.Sources.Intensity) == 0 {
		return fmt.Errorf("sources.intensity needs at least one source")
	}
	for kind, list := range map[string][]SourceConfig{
		"intensity": c.Sources.Intensity,
		"forecast":  c.Sources.Forecast,
		"regions":   c.Sources.Regions,
	} {
		for i, s := range list {
			if err := s.validate(); err != nil {
				return fmt.Errorf("sources.%s[%d]: %w", kind, i, err)
			}
		}
	}

	if c.HTTP.Listen != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Listen); err != nil {
			return fmt.Errorf("invalid http.listen %q: %w", c.HTTP.Listen, err)
		}
	}
	return nil
}

func (s SourceConfig) validate() error {
	switch s.Kind {
	case KindCarbonIntensity:
	case KindElectricityMaps:
		if s.TokenEnv == "" {
			return fmt.Errorf("electricitymaps needs token_env")
		}
	case KindStatic:
		if s.RegionsFile == "" && s.ForecastFile == "" {
			return fmt.Errorf("static source needs regions_file or forecast_file")
		}
	case "":
		return fmt.Errorf("kind cannot be empty")
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	return nil
}

// EngineOptions converts the engine section and region profiles.
func (c *Config) EngineOptions() engine.Options {
	o := engine.DefaultOptions()
	o.ExcellentThreshold = c.Engine.ExcellentThreshold
	o.MinSavingsPercent = c.Engine.MinSavingsPercent
	o.EnableTimeShift = c.Engine.TimeShift
	o.EnableSpaceShift = c.Engine.SpaceShift
	o.EnableHybrid = c.Engine.Hybrid
	o.DynamicSlack = c.Engine.DynamicSlack
	o.Alpha = c.Engine.Alpha
	o.Weights = c.Engine.Weights
	o.ForecastHours = c.Engine.ForecastHours
	o.CacheTTL = c.Engine.CacheTTL.Duration
	o.FetchTimeout = c.Engine.FetchTimeout.Duration
	if c.Engine.FetchAttempts > 0 {
		o.FetchAttempts = c.Engine.FetchAttempts
	}
	o.Profiles = core.NewProfiles(c.Regions)
	return o
}

// Zones maps region IDs to provider zone codes.
func (c *Config) Zones() map[string]string {
	out := make(map[string]string, len(c.Regions))
	for _, r := range c.Regions {
		zone := r.ZoneID
		if zone == "" {
			zone = r.ID
		}
		out[r.ID] = zone
	}
	return out
}
