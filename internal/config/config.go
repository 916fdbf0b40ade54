package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the simulator settings.
type Config struct {
	InitialBalance  float64 `mapstructure:"initial_balance"`
	PollIntervalMs  int     `mapstructure:"poll_interval_ms"`
	PriceBaseURL    string  `mapstructure:"price_base_url"`
	MetadataBaseURL string  `mapstructure:"metadata_base_url"`
	DatabasePath    string  `mapstructure:"database_path"`
	ExportDir       string  `mapstructure:"export_dir"`
	HistoryPageSize int     `mapstructure:"history_page_size"`
	DebugLogging    bool    `mapstructure:"debug_logging"`
}

const (
	DefaultInitialBalance  = 100.0
	DefaultPollIntervalMs  = 3000
	DefaultDatabasePath    = "solana-sim.db"
	DefaultExportDir       = "exports"
	DefaultHistoryPageSize = 5
)

// Load reads configuration from the given file, falling back to defaults
// when path is empty. Environment variables with the SOLANA_SIM prefix
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"initial_balance":   DefaultInitialBalance,
		"poll_interval_ms":  DefaultPollIntervalMs,
		"price_base_url":    "",
		"metadata_base_url": "",
		"database_path":     DefaultDatabasePath,
		"export_dir":        DefaultExportDir,
		"history_page_size": DefaultHistoryPageSize,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("SOLANA_SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validate(&cfg)
}

func validate(cfg *Config) error {
	if cfg.InitialBalance < 0 {
		return errors.New("invalid initial_balance")
	}
	if cfg.PollIntervalMs <= 0 {
		return errors.New("invalid poll_interval_ms")
	}
	if cfg.HistoryPageSize <= 0 {
		return errors.New("invalid history_page_size")
	}
	if cfg.DatabasePath == "" {
		return errors.New("missing database_path")
	}
	if err := validateURL(cfg.PriceBaseURL); err != nil {
		return errors.New("invalid price_base_url")
	}
	if err := validateURL(cfg.MetadataBaseURL); err != nil {
		return errors.New("invalid metadata_base_url")
	}
	return nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, "http") {
		return errors.New("invalid URL protocol")
	}
	return nil
}
