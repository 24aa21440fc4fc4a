package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/pandemic-registry/pkg/normalize"
	"github.com/hazyhaar/pandemic-registry/pkg/pipeline"
	"github.com/hazyhaar/pandemic-registry/pkg/source"
	"github.com/hazyhaar/pandemic-registry/pkg/store"
)

type sourceConfig struct {
	Location string `yaml:"location" validate:"required"`
	Encoding string `yaml:"encoding"`
}

type config struct {
	Database struct {
		Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
		DSN    string `yaml:"dsn" validate:"required"`
	} `yaml:"database"`

	Sources struct {
		Sars         sourceConfig `yaml:"sars"`
		CovidSummary sourceConfig `yaml:"covid_summary"`
		CovidDaily   sourceConfig `yaml:"covid_daily"`
	} `yaml:"sources"`

	WorkDir         string            `yaml:"work_dir"`
	ContinentPolicy string            `yaml:"continent_policy" validate:"omitempty,oneof=accept warn reject"`
	CountryAliases  map[string]string `yaml:"country_aliases"`

	Addr string `yaml:"addr" validate:"required"`
	TLS  struct {
		CertFile string `yaml:"cert_file" validate:"required_with=KeyFile"`
		KeyFile  string `yaml:"key_file" validate:"required_with=CertFile"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"tls"`

	HTTP3 bool `yaml:"http3"`

	ReloadSchedule string `yaml:"reload_schedule"`
	CheckSchedule  string `yaml:"check_schedule"`
	LogLevel       string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

func defaultConfig() config {
	var cfg config
	cfg.Database.Driver = store.DriverSQLite
	cfg.Database.DSN = "pandemic.db"
	cfg.Sources.Sars.Location = "src/Data/sars_2003_complete_dataset_clean.csv"
	cfg.Sources.CovidSummary.Location = "src/Data/worldometer_coronavirus_summary_data.csv"
	cfg.Sources.CovidDaily.Location = "src/Data/worldometer_coronavirus_daily_data.csv"
	cfg.ContinentPolicy = string(pipeline.ContinentWarn)
	cfg.Addr = ":8420"
	cfg.LogLevel = "info"
	return cfg
}

// loadConfig reads the YAML file at path (missing = defaults), then envFile if
// present, then PANDEMIC_* environment overrides, and validates the result.
func loadConfig(path, envFile string) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return cfg, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}
	override(&cfg.Database.Driver, "PANDEMIC_DB_DRIVER")
	override(&cfg.Database.DSN, "PANDEMIC_DB_DSN")
	override(&cfg.Addr, "PANDEMIC_ADDR")
	override(&cfg.LogLevel, "PANDEMIC_LOG_LEVEL")
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	for _, spec := range []string{cfg.ReloadSchedule, cfg.CheckSchedule} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return cfg, fmt.Errorf("invalid schedule %q: %w", spec, err)
		}
	}
	return cfg, nil
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c config) logLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c config) definitions() []source.Definition {
	return []source.Definition{
		{
			ID:          source.SourceSars,
			Pandemic:    normalize.PandemicSARS,
			Description: "SARS 2003 cumulative daily counts by country",
			Location:    c.Sources.Sars.Location,
			Encoding:    c.Sources.Sars.Encoding,
		},
		{
			ID:          source.SourceCovidSummary,
			Pandemic:    normalize.PandemicCOVID,
			Description: "Worldometer COVID-19 summary with continents",
			Location:    c.Sources.CovidSummary.Location,
			Encoding:    c.Sources.CovidSummary.Encoding,
		},
		{
			ID:          source.SourceCovidDaily,
			Pandemic:    normalize.PandemicCOVID,
			Description: "Worldometer COVID-19 daily counts by country",
			Location:    c.Sources.CovidDaily.Location,
			Encoding:    c.Sources.CovidDaily.Encoding,
		},
	}
}
