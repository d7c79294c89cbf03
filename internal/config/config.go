package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"draw_queue/internal/auth"
	"draw_queue/internal/presence"
	"draw_queue/internal/queue"
	"draw_queue/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Address         string        `mapstructure:"address"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c HTTPConfig) Addr() string {
	return c.Address + ":" + c.Port
}

type LoggerConfig struct {
	Level     int  `mapstructure:"level"`
	AddSource bool `mapstructure:"add_source"`
}

// Config is the configuration of every drawqueue command.
type Config struct {
	HTTP     HTTPConfig          `mapstructure:"http"`
	DB       storage.Config      `mapstructure:"db"`
	Redis    storage.RedisConfig `mapstructure:"redis"`
	Auth     auth.Config         `mapstructure:"auth"`
	Queue    queue.Config        `mapstructure:"queue"`
	Presence presence.Config     `mapstructure:"presence"`
	Logger   LoggerConfig        `mapstructure:"logger"`
}

// LoadConfig reads cfgFile when given, then the environment. A .env file in the working
// directory is loaded first unless ENV_CHEK is set, which deployments use to say that
// the environment is already complete.
func LoadConfig(cfgFile string) (*Config, error) {
	if os.Getenv("ENV_CHEK") == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Default().Warn("can't load .env", slog.String("err", err.Error()))
		}
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Auth.AccessSecret == "" {
		return errors.New("auth.access_secret (JWT_ACCESS_SECRET) is required")
	}
	switch c.Presence.Fanout {
	case presence.FanoutLocal, presence.FanoutRedis:
	default:
		return fmt.Errorf("unknown presence fanout %q", c.Presence.Fanout)
	}
	switch c.DB.Driver {
	case storage.DriverPostgres, storage.DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.DB.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	q := queue.DefaultConfig()
	p := presence.DefaultConfig()

	v.SetDefault("http.address", "")
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("db.driver", storage.DriverPostgres)
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.lock_timeout", 2*time.Second)
	v.SetDefault("db.automigrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.token_ttl", 15*time.Minute)

	v.SetDefault("queue.max_concurrent_active", q.MaxConcurrentActive)
	v.SetDefault("queue.active_slot_ttl", q.ActiveSlotTTL)
	v.SetDefault("queue.waiting_idle_ttl", q.WaitingIdleTTL)
	v.SetDefault("queue.reap_interval", q.ReapInterval)
	v.SetDefault("queue.reap_parallelism", q.ReapParallelism)
	v.SetDefault("queue.reaper_enabled", q.ReaperEnabled)
	v.SetDefault("queue.max_retries", q.MaxRetries)

	v.SetDefault("presence.fanout", p.Fanout)
	v.SetDefault("presence.ping_interval", p.PingInterval)
	v.SetDefault("presence.buffer_size", p.BufferSize)

	v.SetDefault("logger.level", int(slog.LevelInfo))
	v.SetDefault("logger.add_source", false)
}

// bindEnvVars maps the flat variable names used by existing deployments onto config
// keys. Every key is also reachable by its own name with dots as underscores.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"http.port":                   {"HTTP_PORT", "PORT"},
		"db.dsn":                      {"DB_DSN", "DATABASE_URL"},
		"db.host":                     {"DB_HOST"},
		"db.port":                     {"DB_PORT"},
		"db.user":                     {"DB_USER"},
		"db.password":                 {"DB_PASSWORD"},
		"db.name":                     {"DB_NAME"},
		"db.driver":                   {"STORAGE_DRIVER"},
		"redis.addr":                  {"REDIS_ADDR"},
		"redis.password":              {"REDIS_PASSWORD"},
		"auth.access_secret":          {"JWT_ACCESS_SECRET"},
		"queue.max_concurrent_active": {"MAX_CONCURRENT_ACTIVE"},
		"queue.active_slot_ttl":       {"ACTIVE_SLOT_TTL"},
		"queue.waiting_idle_ttl":      {"WAITING_IDLE_TTL"},
		"queue.reap_interval":         {"REAP_INTERVAL"},
		"presence.fanout":             {"PRESENCE_FANOUT"},
		"logger.level":                {"LOG_LEVEL"},
	}
	for key, envs := range bindings {
		names := append([]string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, envs...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("can't bind %s: %w", key, err)
		}
	}
	return nil
}

// NewLogger builds the JSON logger used by every command.
func NewLogger(c LoggerConfig) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.Level(c.Level),
		AddSource: c.AddSource,
	}))
}
