package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the whole application configuration. Credentials can be
// overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		FarhadMarket struct {
			WSURL         string   `yaml:"ws_url"`
			RestURL       string   `yaml:"rest_url"`
			APIKey        string   `yaml:"api_key"`
			SecretKey     string   `yaml:"secret_key"`
			TradingPairs  []string `yaml:"trading_pairs"`
			SnapshotLimit int      `yaml:"snapshot_limit"`
		} `yaml:"farhadmarket"`
	} `yaml:"api"`

	Book struct {
		InboxSize   int  `yaml:"inbox_size"`
		FullReplace bool `yaml:"full_replace"`
	} `yaml:"book"`

	Orders struct {
		PollIntervalSec int `yaml:"poll_interval_sec"`
	} `yaml:"orders"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	fm := c.API.FarhadMarket
	if fm.WSURL == "" || (!hasPrefix(fm.WSURL, "ws://") && !hasPrefix(fm.WSURL, "wss://")) {
		return fmt.Errorf("invalid FarhadMarket WS URL: %s", fm.WSURL)
	}
	if fm.RestURL == "" || (!hasPrefix(fm.RestURL, "http://") && !hasPrefix(fm.RestURL, "https://")) {
		return fmt.Errorf("invalid FarhadMarket REST URL: %s", fm.RestURL)
	}
	if len(fm.TradingPairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}
	if c.Book.InboxSize <= 0 {
		return fmt.Errorf("book inbox size must be positive")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.FarhadMarket.SnapshotLimit <= 0 {
		cfg.API.FarhadMarket.SnapshotLimit = 100
	}
	if cfg.Book.InboxSize == 0 {
		cfg.Book.InboxSize = 1024
	}
	if cfg.Orders.PollIntervalSec <= 0 {
		cfg.Orders.PollIntervalSec = 10
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv replaces sensitive values with environment variables when set.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("MARKETSYNC_API_KEY"); key != "" {
		cfg.API.FarhadMarket.APIKey = key
	}
	if secret := os.Getenv("MARKETSYNC_API_SECRET"); secret != "" {
		cfg.API.FarhadMarket.SecretKey = secret
	}
}
