// Package config loads service configuration from file, environment and
// .env using viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Reasons   ReasonsConfig   `mapstructure:"reasons"`
	SlowLog   SlowLogConfig   `mapstructure:"slowlog"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	TimeZone string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

type OutboxConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	MaxRetry  int           `mapstructure:"max_retry"`
}

type PublisherConfig struct {
	Kind    string        `mapstructure:"kind"` // log, webhook, kafka
	Webhook WebhookConfig `mapstructure:"webhook"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// BootstrapConfig seeds the first user and API key on an empty database.
type BootstrapConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Username string `mapstructure:"username"`
	FullName string `mapstructure:"full_name"`
}

type ReasonsConfig struct {
	Version    string          `mapstructure:"version"`
	CustomCode string          `mapstructure:"custom_code"`
	Codes      []domain.Reason `mapstructure:"codes"`
}

type SlowLogConfig struct {
	Threshold time.Duration `mapstructure:"threshold"`
	Capacity  int           `mapstructure:"capacity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.timezone", "UTC")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/gmp.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("outbox.interval", 2*time.Second)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.max_retry", 5)
	v.SetDefault("publisher.kind", "log")
	v.SetDefault("publisher.webhook.timeout", 5*time.Second)
	v.SetDefault("publisher.kafka.topic", "gmp.audit")
	v.SetDefault("bootstrap.username", "admin")
	v.SetDefault("bootstrap.full_name", "Administrator")
	v.SetDefault("reasons.custom_code", "CUSTOM")
	v.SetDefault("slowlog.threshold", 250*time.Millisecond)
	v.SetDefault("slowlog.capacity", 200)
}

// Load reads path (optional), then GMP_* environment variables. A .env file
// in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("GMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Publisher.Kafka.Brokers = splitList(strings.Join(cfg.Publisher.Kafka.Brokers, ","))
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	switch c.Publisher.Kind {
	case "log":
	case "webhook":
		if c.Publisher.Webhook.URL == "" {
			return errors.New("publisher.webhook.url is required")
		}
	case "kafka":
		if len(c.Publisher.Kafka.Brokers) == 0 {
			return errors.New("publisher.kafka.brokers is required")
		}
	default:
		return fmt.Errorf("unknown publisher.kind %q", c.Publisher.Kind)
	}

	if _, err := time.LoadLocation(c.Server.TimeZone); err != nil {
		return fmt.Errorf("server.timezone: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
