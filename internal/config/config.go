// Package config loads goodata.yaml and GOODATA_ environment overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pboyd04/goodata/pkg/cache"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"

	envPrefix   = "GOODATA"
	cachePrefix = "goodata:"
)

// Config represents the goodata configuration
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServiceConfig is the OData service read by default
type ServiceConfig struct {
	URL      string        `mapstructure:"url"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CacheConfig selects where $metadata documents are kept
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// New returns a viper instance with defaults and environment overrides set
// up. Callers may bind flags to it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("service.url", "")
	v.SetDefault("service.user", "")
	v.SetDefault("service.password", "")
	v.SetDefault("service.timeout", 30*time.Second)
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetConfigName("goodata")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file, if any, into v and decodes the result. An
// explicit path must exist; goodata.yaml in the working directory is optional.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

// Read decodes YAML from r on top of the defaults.
func Read(r io.Reader) (*Config, error) {
	v := New()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Cache.Backend = strings.ToLower(config.Cache.Backend)
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Service.URL != "" && !strings.HasPrefix(cfg.Service.URL, "http://") && !strings.HasPrefix(cfg.Service.URL, "https://") {
		return fmt.Errorf("service.url must be an http or https URL, got: %s", cfg.Service.URL)
	}
	if cfg.Service.Timeout < 0 {
		return fmt.Errorf("service.timeout must not be negative, got: %s", cfg.Service.Timeout)
	}
	switch cfg.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if cfg.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be one of memory, redis or none, got: %s", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got: %s", cfg.Cache.TTL)
	}
	if _, err := cfg.Log.level(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c LogConfig) level() (zapcore.Level, error) {
	var level zapcore.Level
	err := level.UnmarshalText([]byte(c.Level))
	return level, err
}

// Logger builds the zap logger described by c.
func (c LogConfig) Logger() (*zap.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Open connects the configured backend. The returned cache is nil for the
// none backend; close is never nil.
func (c CacheConfig) Open(ctx context.Context) (cache.Cache, func() error, error) {
	noop := func() error { return nil }
	base := cache.Config{DefaultTTL: c.TTL, Prefix: cachePrefix}
	switch c.Backend {
	case CacheNone:
		return nil, noop, nil
	case CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Cache:    base,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to redis at %s: %w", c.Redis.Addr, err)
		}
		return rc, rc.Close, nil
	}
	return cache.NewMemoryCacheWithConfig(base), noop, nil
}
