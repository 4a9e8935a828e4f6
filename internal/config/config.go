package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"PULSE_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"PULSE_DB_MAX_CONNS" default:"8"`

	// ModelServiceURL points at the embedding/NER capability service. Empty
	// runs the pipeline degraded: no semantic dedup, pattern-only extraction.
	ModelServiceURL     string  `envconfig:"PULSE_MODEL_SERVICE_URL" default:""`
	SimilarityThreshold float64 `envconfig:"PULSE_SIMILARITY_THRESHOLD" default:"0"`
	QueryThreshold      float64 `envconfig:"PULSE_QUERY_THRESHOLD" default:"0"`

	// Feeds holds comma-separated Name=URL pairs; empty uses the built-in
	// Indian market feeds.
	Feeds         string        `envconfig:"PULSE_FEEDS" default:""`
	FetchFullText bool          `envconfig:"PULSE_FETCH_FULLTEXT" default:"false"`
	PollInterval  time.Duration `envconfig:"PULSE_POLL_INTERVAL" default:"1h"`
	BatchSize     int           `envconfig:"PULSE_BATCH_SIZE" default:"100"`

	KafkaBrokers string `envconfig:"PULSE_KAFKA_BROKERS" default:""`
	KafkaTopic   string `envconfig:"PULSE_KAFKA_TOPIC" default:"pulse.articles"`
	KafkaGroupID string `envconfig:"PULSE_KAFKA_GROUP_ID" default:"pulse-ingest"`

	RequireAPIKey bool `envconfig:"PULSE_REQUIRE_API_KEY" default:"false"`

	// StockOverlayPath optionally points at a yaml file extending the
	// built-in stock mapping tables.
	StockOverlayPath string `envconfig:"PULSE_STOCK_OVERLAY" default:""`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("PULSE_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("PULSE_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("PULSE_DB_MIN_CONNS (%d) cannot exceed PULSE_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("PULSE_SIMILARITY_THRESHOLD must be within [0, 1]")
	}
	if c.QueryThreshold < 0 || c.QueryThreshold > 1 {
		return fmt.Errorf("PULSE_QUERY_THRESHOLD must be within [0, 1]")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("PULSE_POLL_INTERVAL must be at least 1s")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("PULSE_BATCH_SIZE must be >= 1")
	}
	if strings.TrimSpace(c.KafkaBrokers) != "" {
		if strings.TrimSpace(c.KafkaTopic) == "" {
			return fmt.Errorf("PULSE_KAFKA_TOPIC is required when brokers are set")
		}
		if strings.TrimSpace(c.KafkaGroupID) == "" {
			return fmt.Errorf("PULSE_KAFKA_GROUP_ID is required when brokers are set")
		}
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}
	return splitTrimmed(c.CORSAllowedOrigins)
}

func (c *Config) KafkaBrokerList() []string {
	if c == nil {
		return nil
	}
	return splitTrimmed(c.KafkaBrokers)
}

func splitTrimmed(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if _, exists := seen[item]; exists {
			continue
		}
		seen[item] = struct{}{}
		items = append(items, item)
	}
	return items
}
