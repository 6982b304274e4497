package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting of the timetable backend.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Source    SourceConfig    `mapstructure:"source"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// LogConfig selects the zap level and encoder ("json" or "console").
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SourceConfig points at the timetable website.
type SourceConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CacheConfig sets the time-to-live of each cache and the activities retry
// policy.
type CacheConfig struct {
	SemestersTTL            time.Duration `mapstructure:"semesters_ttl"`
	CoursesTTL              time.Duration `mapstructure:"courses_ttl"`
	ActivitiesTTL           time.Duration `mapstructure:"activities_ttl"`
	ActivitiesMaxEntries    int           `mapstructure:"activities_max_entries"`
	ActivitiesRetryAttempts int           `mapstructure:"activities_retry_attempts"`
	ActivitiesRetryDelay    time.Duration `mapstructure:"activities_retry_delay"`
}

// RateLimitConfig is a per client IP token bucket.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"`
	Burst   int     `mapstructure:"burst"`
}

// Load reads the configuration. Precedence: environment > config file >
// defaults. A .env file in the working directory is loaded into the
// environment first. PORT overrides server.port.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors.allow_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("source.base_url", "https://tp.educloud.no/ntnu/timeplan")
	v.SetDefault("source.user_agent", "")
	v.SetDefault("source.timeout", "30s")

	v.SetDefault("cache.semesters_ttl", "168h")
	v.SetDefault("cache.courses_ttl", "168h")
	v.SetDefault("cache.activities_ttl", "2h")
	v.SetDefault("cache.activities_max_entries", 500)
	v.SetDefault("cache.activities_retry_attempts", 5)
	v.SetDefault("cache.activities_retry_delay", "1s")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rate", 1)
	v.SetDefault("ratelimit.burst", 10)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TIMEPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "PORT", "TIMEPLAN_SERVER_PORT"); err != nil {
		return nil, fmt.Errorf("error binding PORT: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	ttls := map[string]time.Duration{
		"cache.semesters_ttl":  c.Cache.SemestersTTL,
		"cache.courses_ttl":    c.Cache.CoursesTTL,
		"cache.activities_ttl": c.Cache.ActivitiesTTL,
		"source.timeout":       c.Source.Timeout,
	}
	for key, d := range ttls {
		if d <= 0 {
			return fmt.Errorf("invalid config: %s must be positive, got %s", key, d)
		}
	}
	if c.Cache.ActivitiesRetryAttempts < 1 {
		return fmt.Errorf("invalid config: cache.activities_retry_attempts must be at least 1, got %d", c.Cache.ActivitiesRetryAttempts)
	}
	if c.Cache.ActivitiesRetryDelay < 0 {
		return fmt.Errorf("invalid config: cache.activities_retry_delay must not be negative, got %s", c.Cache.ActivitiesRetryDelay)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("invalid config: ratelimit needs a positive rate and burst")
	}
	return nil
}
