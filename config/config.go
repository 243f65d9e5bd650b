package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
	Tx       TxConfig       `yaml:"tx"`
}

type HTTPConfig struct {
	Address         string `yaml:"address"`
	OpenAPIFile     string `yaml:"openapi_file"`
	ShutdownSeconds int    `yaml:"shutdown_seconds"`
}

type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Name          string `yaml:"name"`
	SSLMode       string `yaml:"ssl_mode"`
	MaxConns      int32  `yaml:"max_conns"`
	RunMigrations bool   `yaml:"run_migrations"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
	PublishRetries     int      `yaml:"publish_retries"`
}

type BookingConfig struct {
	DefaultHoldMinutes    int   `yaml:"default_hold_minutes"`
	SeatLockSeconds       int   `yaml:"seat_lock_seconds"`
	FlightsCacheTTL       int   `yaml:"flights_cache_ttl_seconds"`
	SearchPageSize        int   `yaml:"search_page_size"`
	IdempotencyTTLMinutes int   `yaml:"idempotency_ttl_minutes"`
	OpeningBalance        int64 `yaml:"opening_balance"`
}

type WorkerConfig struct {
	HoldSweepSeconds  int `yaml:"hold_sweep_seconds"`
	SurgeSweepSeconds int `yaml:"surge_sweep_seconds"`
	BatchSize         int `yaml:"batch_size"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type TxConfig struct {
	MaxAttempts   uint `yaml:"max_attempts"`
	BackoffMillis int  `yaml:"backoff_millis"`
}

func (t TxConfig) Backoff() time.Duration {
	return time.Duration(t.BackoffMillis) * time.Millisecond
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownSeconds <= 0 {
		c.HTTP.ShutdownSeconds = 5
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka.PublishRetries <= 0 {
		c.Kafka.PublishRetries = 3
	}
	if c.Booking.DefaultHoldMinutes <= 0 {
		c.Booking.DefaultHoldMinutes = 10
	}
	if c.Booking.SeatLockSeconds <= 0 {
		c.Booking.SeatLockSeconds = 10
	}
	if c.Booking.FlightsCacheTTL <= 0 {
		c.Booking.FlightsCacheTTL = 30
	}
	if c.Booking.SearchPageSize <= 0 {
		c.Booking.SearchPageSize = 10
	}
	if c.Booking.IdempotencyTTLMinutes <= 0 {
		c.Booking.IdempotencyTTLMinutes = 5
	}
	if c.Booking.OpeningBalance <= 0 {
		c.Booking.OpeningBalance = 50000
	}
	if c.Worker.HoldSweepSeconds <= 0 {
		c.Worker.HoldSweepSeconds = 30
	}
	if c.Worker.SurgeSweepSeconds <= 0 {
		c.Worker.SurgeSweepSeconds = 60
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tx.MaxAttempts == 0 {
		c.Tx.MaxAttempts = 3
	}
	if c.Tx.BackoffMillis <= 0 {
		c.Tx.BackoffMillis = 20
	}
}
