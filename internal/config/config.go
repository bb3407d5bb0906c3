package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Ingest   Ingest   `yaml:"ingest"`
	Browser  Browser  `yaml:"browser"`
	JSON     JSON     `yaml:"json"`
	Kafka    Kafka    `yaml:"kafka"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"clickpipe-collector"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8290"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Ingest sizes the partitioned processing pool.
type Ingest struct {
	Workers         int           `yaml:"workers" env:"INGEST_WORKERS" env-default:"4"`
	QueueCapacity   int           `yaml:"queue_capacity" env:"INGEST_QUEUE_CAPACITY" env-default:"256"`
	EnqueueWait     time.Duration `yaml:"enqueue_wait" env:"INGEST_ENQUEUE_WAIT" env-default:"50ms"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"INGEST_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Browser configures the browser-originated event source.
type Browser struct {
	Prefix           string `yaml:"prefix" env:"BROWSER_PREFIX" env-default:"/"`
	PartyIDParameter string `yaml:"party_id_parameter" env:"BROWSER_PARTY_ID_PARAMETER" env-default:"p"`
}

// JSON configures the JSON-originated event source.
type JSON struct {
	Prefix           string `yaml:"prefix" env:"JSON_PREFIX" env-default:"/"`
	PartyIDParameter string `yaml:"party_id_parameter" env:"JSON_PARTY_ID_PARAMETER" env-default:"p"`
	MaximumBodySize  int    `yaml:"maximum_body_size" env:"JSON_MAXIMUM_BODY_SIZE" env-default:"4096"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"clickstream-events"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"clickpipe_db"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("config error: ingest workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.Ingest.QueueCapacity <= 0 {
		return fmt.Errorf("config error: ingest queue capacity must be positive, got %d", c.Ingest.QueueCapacity)
	}
	if c.JSON.MaximumBodySize <= 0 {
		return fmt.Errorf("config error: json maximum body size must be positive, got %d", c.JSON.MaximumBodySize)
	}
	return nil
}
