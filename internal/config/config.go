// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Species       string
	CubePath      string
	SeasonsPath   string
	RegionsPath   string
	RegionIDField string
	BoundaryPath  string
	AggFactor     int
	ExportDir     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka publishing of zonal statistics is optional: empty brokers
	// disable it.
	KafkaBrokers    []string
	KafkaStatsTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	aggFactor, err := parsePositiveInt("AGG_FACTOR", 1)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Species:       os.Getenv("SPECIES"),
		CubePath:      os.Getenv("CUBE_PATH"),
		SeasonsPath:   os.Getenv("SEASONS_PATH"),
		RegionsPath:   os.Getenv("REGIONS_PATH"),
		RegionIDField: envOrDefault("REGION_ID_FIELD", "GEOID"),
		BoundaryPath:  os.Getenv("BOUNDARY_PATH"),
		AggFactor:     aggFactor,
		ExportDir:     envOrDefault("EXPORT_DIR", "out"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaStatsTopic: envOrDefault("KAFKA_STATS_TOPIC", "range-map-stats"),
	}

	if cfg.Species == "" {
		return nil, errors.New("SPECIES is required")
	}
	if cfg.CubePath == "" {
		return nil, errors.New("CUBE_PATH is required")
	}
	if cfg.SeasonsPath == "" {
		return nil, errors.New("SEASONS_PATH is required")
	}
	return cfg, nil
}

// KafkaEnabled reports whether stats publishing is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}
