package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/g-uva/kube-carbon-scheduler/pkg/config"
	"github.com/g-uva/kube-carbon-scheduler/pkg/engine"
)

var version = "dev"

// globals carries the persistent flags and the logger built from them.
type globals struct {
	debug      bool
	configPath string
	log        zerolog.Logger
}

func newRootCommand() *cobra.Command {
	g := &globals{log: zerolog.Nop()}
	cmd := &cobra.Command{
		Use:   "carbonsched",
		Short: "Carbon-aware scheduling decisions",
		Long: `carbonsched decides whether a workload should run now, wait for a
cleaner grid, move to a cleaner region, or both.

Decisions can be requested once from the command line, served over HTTP,
or replayed in bulk against synthetic grid data.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to the YAML config file")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		g.log = newLogger(cmd.ErrOrStderr(), g.debug)
	}

	cmd.AddCommand(newDecideCommand(g))
	cmd.AddCommand(newAdviseCommand(g))
	cmd.AddCommand(newServeCommand(g))
	cmd.AddCommand(newSimulateCommand(g))
	cmd.AddCommand(newGenerateCommand(g))

	return cmd
}

func newLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func execute() error {
	return newRootCommand().Execute()
}

// offlineFlags selects local CSVs instead of a config file.
type offlineFlags struct {
	regions  string
	forecast string
	profiles string
}

func (o *offlineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.regions, "regions-csv", "", "Regions CSV used when no config is given")
	cmd.Flags().StringVar(&o.forecast, "forecast-csv", "", "Forecast CSV used when no config is given")
	cmd.Flags().StringVar(&o.profiles, "profiles-csv", "", "Region profiles CSV used when no config is given")
}

func (g *globals) loadConfig(o offlineFlags) (*config.Config, error) {
	if g.configPath != "" {
		return config.Load(g.configPath)
	}
	if o.regions == "" && o.forecast == "" {
		return nil, fmt.Errorf("either --config or --regions-csv/--forecast-csv is required")
	}
	return config.Offline(o.regions, o.forecast, o.profiles)
}

func (g *globals) buildEngine(cfg *config.Config, extra ...engine.Option) (*engine.Engine, error) {
	src, err := cfg.BuildSources(g.log)
	if err != nil {
		return nil, err
	}
	opts := append([]engine.Option{engine.WithLogger(g.log)}, extra...)
	return engine.New(cfg.EngineOptions(), src, opts...)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
