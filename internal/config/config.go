package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database Database `yaml:"database"`
	Manifest Manifest `yaml:"manifest"`
	Probe    Probe    `yaml:"probe"`
	Sampler  Sampler  `yaml:"sampler"`
	Scoring  Scoring  `yaml:"scoring"`
	API      API      `yaml:"api"`
	Metrics  Metrics  `yaml:"metrics"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Manifest struct {
	Path string `yaml:"path"`
}

type Probe struct {
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Trackers     []string      `yaml:"trackers"`
	ScrapePerSec float64       `yaml:"scrape_per_sec"`
	ScrapeBurst  int           `yaml:"scrape_burst"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	MaxScrapeTry int           `yaml:"max_scrape_tries"`
}

type Sampler struct {
	Mode          string        `yaml:"mode"` // "catalog" or "gossip"
	Interval      time.Duration `yaml:"interval"`
	HistoryLimit  int           `yaml:"history_limit"`
	CandidatePool int           `yaml:"candidate_pool"`
}

// Scoring holds the exploding-score weighting. The point caps are empirical;
// they are exposed here rather than hard-coded so deployments can retune them.
type Scoring struct {
	WindowHours     float64 `yaml:"window_hours"`
	GrowthCap       float64 `yaml:"growth_cap"`
	AccelerationCap float64 `yaml:"acceleration_cap"`
	DensityCap      float64 `yaml:"density_cap"`
	ScaleCap        float64 `yaml:"scale_cap"`
}

type API struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	var cfg Config
	// Defaults
	cfg.Database.Path = "swarmwatch.db"
	cfg.Manifest.Path = "swarms.csv"
	cfg.Probe.Timeout = 10 * time.Second
	cfg.Probe.PollInterval = 500 * time.Millisecond
	cfg.Probe.ScrapePerSec = 4
	cfg.Probe.ScrapeBurst = 8
	cfg.Probe.CacheSize = 4096
	cfg.Probe.CacheTTL = 2 * time.Minute
	cfg.Probe.MaxScrapeTry = 3
	cfg.Probe.Trackers = []string{
		"udp://tracker.opentrackr.org:1337",
		"udp://open.tracker.cl:1337",
		"udp://tracker.torrent.eu.org:451",
	}
	cfg.Sampler.Mode = "catalog"
	cfg.Sampler.Interval = 300 * time.Second
	cfg.Sampler.HistoryLimit = 10
	cfg.Sampler.CandidatePool = 10
	cfg.Scoring.WindowHours = 24
	cfg.Scoring.GrowthCap = 50
	cfg.Scoring.AccelerationCap = 30
	cfg.Scoring.DensityCap = 20
	cfg.Scoring.ScaleCap = 20
	cfg.API.Listen = ":8480"
	cfg.Metrics.Listen = ":9246"

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Run entirely on defaults when no config file is present
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if cfg.Sampler.Mode != "catalog" && cfg.Sampler.Mode != "gossip" {
		return nil, fmt.Errorf("unknown sampler mode %q", cfg.Sampler.Mode)
	}
	if cfg.Sampler.CandidatePool <= 0 {
		cfg.Sampler.CandidatePool = 10
	}
	if cfg.Sampler.HistoryLimit <= 0 {
		cfg.Sampler.HistoryLimit = 10
	}

	return &cfg, nil
}
