// Package config resolves runtime settings for the api process.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cleanflow/pricing"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	MaxDBConns  int32

	JWTSecret string
	PIISecret string

	DisputeWindow  time.Duration
	SweepInterval  time.Duration
	OutboxInterval time.Duration
	OutboxBatch    int

	RedisURL     string
	KafkaBrokers []string
	KafkaPrefix  string

	CreateRatePerMinute int
	Pricing             pricing.Policy
}

// file mirrors the YAML layout of config.yaml.
type file struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"database"`
	Dispute struct {
		WindowHours          int `yaml:"window_hours"`
		SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
		CreatePerMinute      int `yaml:"create_per_minute"`
	} `yaml:"dispute"`
	Pricing struct {
		PerBedroomCents  *int64 `yaml:"per_bedroom_cents"`
		PerBathroomCents *int64 `yaml:"per_bathroom_cents"`
		MinimumCents     *int64 `yaml:"minimum_cents"`
	} `yaml:"pricing"`
	Outbox struct {
		IntervalSeconds int      `yaml:"interval_seconds"`
		BatchSize       int      `yaml:"batch_size"`
		KafkaBrokers    []string `yaml:"kafka_brokers"`
		TopicPrefix     string   `yaml:"topic_prefix"`
	} `yaml:"outbox"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
}

// Load resolves configuration in order: defaults, then the YAML file at path
// if it exists, then environment variables.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:            ":8080",
		MaxDBConns:          10,
		DisputeWindow:       24 * time.Hour,
		SweepInterval:       time.Minute,
		OutboxInterval:      2 * time.Second,
		OutboxBatch:         100,
		KafkaPrefix:         "cleanflow.",
		CreateRatePerMinute: 10,
		Pricing:             pricing.DefaultPolicy,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.applyFile(raw); err != nil {
				return Config{}, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("config: parse file: %w", err)
	}
	if f.Server.Addr != "" {
		c.HTTPAddr = f.Server.Addr
	}
	if f.Database.URL != "" {
		c.DatabaseURL = f.Database.URL
	}
	if f.Database.MaxConns > 0 {
		c.MaxDBConns = f.Database.MaxConns
	}
	if f.Dispute.WindowHours > 0 {
		c.DisputeWindow = time.Duration(f.Dispute.WindowHours) * time.Hour
	}
	if f.Dispute.SweepIntervalSeconds > 0 {
		c.SweepInterval = time.Duration(f.Dispute.SweepIntervalSeconds) * time.Second
	}
	if f.Dispute.CreatePerMinute > 0 {
		c.CreateRatePerMinute = f.Dispute.CreatePerMinute
	}
	if v := f.Pricing.PerBedroomCents; v != nil {
		c.Pricing.PerBedroom = pricing.Cents(*v)
	}
	if v := f.Pricing.PerBathroomCents; v != nil {
		c.Pricing.PerBathroom = pricing.Cents(*v)
	}
	if v := f.Pricing.MinimumCents; v != nil {
		c.Pricing.Minimum = pricing.Cents(*v)
	}
	if f.Outbox.IntervalSeconds > 0 {
		c.OutboxInterval = time.Duration(f.Outbox.IntervalSeconds) * time.Second
	}
	if f.Outbox.BatchSize > 0 {
		c.OutboxBatch = f.Outbox.BatchSize
	}
	if len(f.Outbox.KafkaBrokers) > 0 {
		c.KafkaBrokers = f.Outbox.KafkaBrokers
	}
	if f.Outbox.TopicPrefix != "" {
		c.KafkaPrefix = f.Outbox.TopicPrefix
	}
	if f.Redis.URL != "" {
		c.RedisURL = f.Redis.URL
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = envOrDefault("HTTP_ADDR", c.HTTPAddr)
	c.DatabaseURL = envOrDefault("DATABASE_URL", c.DatabaseURL)
	c.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(c.MaxDBConns)))
	c.JWTSecret = envOrDefault("JWT_SECRET", c.JWTSecret)
	c.PIISecret = envOrDefault("PII_SECRET", c.PIISecret)
	c.RedisURL = envOrDefault("REDIS_URL", c.RedisURL)
	c.KafkaBrokers = envCSV("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaPrefix = envOrDefault("KAFKA_TOPIC_PREFIX", c.KafkaPrefix)

	c.DisputeWindow = time.Duration(envInt("DISPUTE_WINDOW_HOURS", int(c.DisputeWindow.Hours()))) * time.Hour
	c.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_SECONDS", int(c.SweepInterval.Seconds()))) * time.Second
	c.OutboxInterval = time.Duration(envInt("OUTBOX_INTERVAL_SECONDS", int(c.OutboxInterval.Seconds()))) * time.Second
	c.OutboxBatch = envInt("OUTBOX_BATCH_SIZE", c.OutboxBatch)
	c.CreateRatePerMinute = envInt("CREATE_RATE_PER_MINUTE", c.CreateRatePerMinute)

	c.Pricing.PerBedroom = pricing.Cents(envInt("PRICE_PER_BEDROOM_CENTS", int(c.Pricing.PerBedroom)))
	c.Pricing.PerBathroom = pricing.Cents(envInt("PRICE_PER_BATHROOM_CENTS", int(c.Pricing.PerBathroom)))
	c.Pricing.Minimum = pricing.Cents(envInt("PRICE_MINIMUM_CENTS", int(c.Pricing.Minimum)))
}

// Validate reports every missing or unusable setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("config: DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("config: JWT_SECRET is required"))
	}
	if c.PIISecret == "" {
		errs = append(errs, errors.New("config: PII_SECRET is required"))
	}
	if c.DisputeWindow <= 0 {
		errs = append(errs, errors.New("config: dispute window must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("config: sweep interval must be positive"))
	}
	if err := c.Pricing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envCSV(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
