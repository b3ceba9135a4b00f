package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"northpole/internal/config"
	"northpole/internal/workshop"
)

var (
	cfgFile  string
	logLevel string

	versionInfo = struct {
		Version   string
		Commit    string
		BuildDate string
	}{Version: "dev", Commit: "none", BuildDate: "unknown"}
)

var rootCmd = &cobra.Command{
	Use:   "workshop",
	Short: "Santa's workshop scheduler",
	Long: `workshop schedules toy orders onto elves, simulates the builds and
plans the delivery route.

Examples:
  workshop serve --config workshop.yaml
  workshop demo`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (trace, debug, info, warn, error)")
	rootCmd.Version = versionInfo.Version
}

// SetVersionInfo is called from main with values injected at build time.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config and applies --log-level on top.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// setupLogger points the global zerolog logger at out.
func setupLogger(cfg config.Config, out io.Writer) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return nil
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	return nil
}

// seedWorkshop fills an empty workshop from the configured seed.
func seedWorkshop(ws *workshop.Workshop, seed config.Seed) error {
	toys, elves, orders, err := seed.Entities()
	if err != nil {
		return err
	}
	for _, t := range toys {
		if err := ws.AddToy(t); err != nil {
			return err
		}
	}
	for _, e := range elves {
		if err := ws.AddElf(e); err != nil {
			return err
		}
	}
	for _, o := range orders {
		if err := ws.AddOrder(o); err != nil {
			return err
		}
	}
	return nil
}
