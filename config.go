// config.go
//
// YAML configuration for the tickerd binary. Strict decoding: unknown keys
// are rejected so a typo'd placement field cannot silently fall back to a
// default and unpin the consumer.

package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tickerd/affinity"
	"tickerd/analyzer"
	"tickerd/csvlog"
)

// Config holds the complete process configuration.
type Config struct {
	Products      []string `yaml:"products"`     // product ids to subscribe
	FeedURL       string   `yaml:"feed_url"`     // empty = production feed
	CSVPath       string   `yaml:"csv_path"`     // tick output destination
	SessionDBPath string   `yaml:"session_db"`   // sqlite summaries; empty disables
	EMASeconds    int      `yaml:"ema_seconds"`  // smoothing interval
	CPU           int      `yaml:"cpu"`          // consumer CPU; -1 = auto
	NUMANode      int      `yaml:"numa_node"`    // consumer NUMA node; -1 = auto
	Priority      int      `yaml:"priority"`     // SCHED_FIFO priority request
	FlushMillis   int      `yaml:"flush_ms"`     // CSV flush cadence
	StampWrites   bool     `yaml:"stamp_writes"` // logged_at_ns column
}

// DefaultConfig is a runnable configuration: BTC-USD to ticker_data.csv with
// automatic placement.
func DefaultConfig() Config {
	return Config{
		Products:    []string{"BTC-USD"},
		CSVPath:     "ticker_data.csv",
		EMASeconds:  5,
		CPU:         affinity.Auto,
		NUMANode:    affinity.Auto,
		Priority:    affinity.DefaultPriority,
		FlushMillis: 10,
		StampWrites: true,
	}
}

// LoadConfig reads path over the defaults. Fields absent from the file keep
// their default values; unknown fields fail the load.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Products) == 0 {
		return cfg, fmt.Errorf("config: products must not be empty")
	}
	if cfg.CSVPath == "" {
		return cfg, fmt.Errorf("config: csv_path must not be empty")
	}
	return cfg, nil
}

// analyzerConfig lowers the file shape into the analyzer's runtime config.
func (c Config) analyzerConfig() analyzer.Config {
	opts := csvlog.DefaultOptions()
	opts.CPU = c.CPU
	opts.NUMANode = c.NUMANode
	opts.Priority = c.Priority
	opts.FlushInterval = time.Duration(c.FlushMillis) * time.Millisecond
	opts.Stamp = c.StampWrites
	return analyzer.Config{
		Products:      c.Products,
		FeedURL:       c.FeedURL,
		CSVPath:       c.CSVPath,
		SessionDBPath: c.SessionDBPath,
		EMASeconds:    c.EMASeconds,
		LoggerOptions: opts,
	}
}
