package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreMemory  = "memory"
	StoreSQLite  = "sqlite"
	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

// Config holds runtime settings read from the environment
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Store  string `envconfig:"STORE" default:"memory"`
	DBPath string `envconfig:"DB_PATH" default:"bidding.db"`

	Broker             string `envconfig:"BROKER" default:"memory"`
	RedisAddr          string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword      string `envconfig:"REDIS_PASSWORD"`
	RedisDB            int    `envconfig:"REDIS_DB" default:"0"`
	RedisChannelPrefix string `envconfig:"REDIS_CHANNEL_PREFIX" default:"auction:"`

	SubscriberBuffer int           `envconfig:"SUBSCRIBER_BUFFER" default:"16"`
	PublishTimeout   time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"2s"`
	PublishWorkers   int           `envconfig:"PUBLISH_WORKERS" default:"8"`
	PublishQueue     int           `envconfig:"PUBLISH_QUEUE" default:"256"`
	CloserInterval   time.Duration `envconfig:"CLOSER_INTERVAL" default:"1s"`
	SeedDemo         bool          `envconfig:"SEED_DEMO" default:"true"`
}

// Load reads the environment and validates the result
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	switch c.Broker {
	case BrokerMemory, BrokerRedis:
	default:
		return fmt.Errorf("config: unknown BROKER %q", c.Broker)
	}
	if c.Store == StoreSQLite && c.DBPath == "" {
		return fmt.Errorf("config: DB_PATH must not be empty")
	}
	if c.Broker == BrokerRedis && c.RedisAddr == "" {
		return fmt.Errorf("config: REDIS_ADDR must not be empty")
	}
	if c.SubscriberBuffer <= 0 {
		return fmt.Errorf("config: SUBSCRIBER_BUFFER must be > 0")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("config: PUBLISH_TIMEOUT must be > 0")
	}
	if c.PublishWorkers <= 0 || c.PublishQueue <= 0 {
		return fmt.Errorf("config: PUBLISH_WORKERS and PUBLISH_QUEUE must be > 0")
	}
	if c.CloserInterval <= 0 {
		return fmt.Errorf("config: CLOSER_INTERVAL must be > 0")
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c Config) Addr() string {
	return ":" + c.Port
}
