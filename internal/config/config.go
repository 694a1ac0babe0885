package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BrokerRabbitMQ = "rabbitmq"
	BrokerRedis    = "redis"
	BrokerNone     = "none"
)

type Config struct {
	Env         string `mapstructure:"APP_ENV"`
	ListenAddr  string `mapstructure:"LISTEN_ADDR"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AutoMigrate bool   `mapstructure:"AUTO_MIGRATE"`
	DBMaxConns  int32  `mapstructure:"DATABASE_MAX_CONNS"`

	BackgroundCheckURL     string        `mapstructure:"BACKGROUND_CHECK_URL"`
	BackgroundCheckAPIKey  string        `mapstructure:"BACKGROUND_CHECK_API_KEY"`
	BackgroundCheckTimeout time.Duration `mapstructure:"BACKGROUND_CHECK_TIMEOUT"`

	EventsBroker      string `mapstructure:"EVENTS_BROKER"`
	RabbitMQURL       string `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange  string `mapstructure:"RABBITMQ_EXCHANGE"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int    `mapstructure:"REDIS_DB"`
	RedisStream       string `mapstructure:"REDIS_STREAM"`
	RedisStreamMaxLen int64  `mapstructure:"REDIS_STREAM_MAXLEN"`

	RelayWorkers      int           `mapstructure:"RELAY_WORKERS"`
	RelayPollInterval time.Duration `mapstructure:"RELAY_POLL_INTERVAL"`
	RelayMaxAttempts  int           `mapstructure:"RELAY_MAX_ATTEMPTS"`
	RelayLease        time.Duration `mapstructure:"RELAY_LEASE"`
}

var keys = []string{
	"APP_ENV", "LISTEN_ADDR", "LOG_LEVEL", "DATABASE_URL", "AUTO_MIGRATE", "DATABASE_MAX_CONNS",
	"BACKGROUND_CHECK_URL", "BACKGROUND_CHECK_API_KEY", "BACKGROUND_CHECK_TIMEOUT",
	"EVENTS_BROKER", "RABBITMQ_URL", "RABBITMQ_EXCHANGE",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_STREAM", "REDIS_STREAM_MAXLEN",
	"RELAY_WORKERS", "RELAY_POLL_INTERVAL", "RELAY_MAX_ATTEMPTS", "RELAY_LEASE",
}

// Load reads configuration from an optional .env file in dir and the
// environment, which wins.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("DATABASE_MAX_CONNS", 10)
	v.SetDefault("BACKGROUND_CHECK_TIMEOUT", 10*time.Second)
	v.SetDefault("EVENTS_BROKER", BrokerRabbitMQ)
	v.SetDefault("RABBITMQ_EXCHANGE", "account_events")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_STREAM", "account.events")
	v.SetDefault("REDIS_STREAM_MAXLEN", 100000)
	v.SetDefault("RELAY_WORKERS", 2)
	v.SetDefault("RELAY_POLL_INTERVAL", 500*time.Millisecond)
	v.SetDefault("RELAY_MAX_ATTEMPTS", 5)
	v.SetDefault("RELAY_LEASE", 5*time.Minute)

	// Unmarshal only sees env vars that are bound.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.EventsBroker = strings.ToLower(strings.TrimSpace(cfg.EventsBroker))
	return cfg, cfg.Validate()
}

// Validate checks the settings the process cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.BackgroundCheckURL == "" {
		errs = append(errs, errors.New("BACKGROUND_CHECK_URL not set"))
	}
	switch c.EventsBroker {
	case BrokerRabbitMQ:
		if c.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL not set"))
		}
	case BrokerRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR not set"))
		}
	case BrokerNone:
	default:
		errs = append(errs, errors.New("EVENTS_BROKER must be rabbitmq, redis or none"))
	}
	if c.RelayMaxAttempts < 1 {
		errs = append(errs, errors.New("RELAY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.RedisStreamMaxLen < 0 {
		errs = append(errs, errors.New("REDIS_STREAM_MAXLEN must not be negative"))
	}
	if c.RelayLease < 0 {
		errs = append(errs, errors.New("RELAY_LEASE must not be negative"))
	}
	return errors.Join(errs...)
}
