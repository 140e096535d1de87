// Package config loads client and server settings: built-in defaults, then an
// optional YAML file, then STOCKSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "STOCKSYNC"

// LogConfig настройки логирования
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // text или json
	File       string `mapstructure:"file"`   // пусто - stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SyncConfig параметры очереди и executor
type SyncConfig struct {
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffCap     int           `mapstructure:"backoff_cap"`
}

// ConflictConfig политика разрешения конфликтов
type ConflictConfig struct {
	SignificantFields      map[string][]string `mapstructure:"significant_fields"`
	NonCriticalFields      map[string][]string `mapstructure:"non_critical_fields"`
	ClockSkew              time.Duration       `mapstructure:"clock_skew"`
	ServerWinsAfter        time.Duration       `mapstructure:"server_wins_after"`
	ManualVersionConflicts bool                `mapstructure:"manual_version_conflicts"`
}

// BackgroundConfig связь background и foreground контекстов
type BackgroundConfig struct {
	Socket               string        `mapstructure:"socket"`
	AckTimeout           time.Duration `mapstructure:"ack_timeout"`
	ConnectivityInterval time.Duration `mapstructure:"connectivity_interval"`
}

// ClientConfig настройки клиента
type ClientConfig struct {
	ServerURL   string           `mapstructure:"server_url"`
	DBPath      string           `mapstructure:"db_path"`
	MetricsAddr string           `mapstructure:"metrics_addr"` // пусто - метрики не публикуются
	Log         LogConfig        `mapstructure:"log"`
	Conflict    ConflictConfig   `mapstructure:"conflict"`
	Background  BackgroundConfig `mapstructure:"background"`
	Sync        SyncConfig       `mapstructure:"sync"`
}

// ServerConfig настройки сервера
type ServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	DBPath    string        `mapstructure:"db_path"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	Log       LogConfig     `mapstructure:"log"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	RateLimit float64       `mapstructure:"rate_limit"` // запросов в секунду на клиента
	RateBurst int           `mapstructure:"rate_burst"`
}

func setLogDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// ClientDefaults регистрирует значения по умолчанию клиента
func ClientDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("db_path", "stocksync-client.db")
	v.SetDefault("metrics_addr", "")

	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("sync.max_retries", 5)
	v.SetDefault("sync.backoff_base", time.Second)
	v.SetDefault("sync.backoff_cap", 6)
	v.SetDefault("sync.request_timeout", 15*time.Second)
	v.SetDefault("sync.poll_interval", 30*time.Second)

	v.SetDefault("conflict.clock_skew", 5*time.Second)
	v.SetDefault("conflict.server_wins_after", 5*time.Minute)
	v.SetDefault("conflict.manual_version_conflicts", false)

	v.SetDefault("background.socket", "stocksync.sock")
	v.SetDefault("background.ack_timeout", 5*time.Second)
	v.SetDefault("background.connectivity_interval", 10*time.Second)

	setLogDefaults(v)
}

// ServerDefaults регистрирует значения по умолчанию сервера
func ServerDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "stocksync-server.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", time.Hour)
	v.SetDefault("rate_limit", 50.0)
	v.SetDefault("rate_burst", 100)
	setLogDefaults(v)
}

// New создает viper с префиксом окружения. Ключ sync.max_retries читается из STOCKSYNC_SYNC_MAX_RETRIES.
func New(defaults func(*viper.Viper)) *viper.Viper {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile подмешивает YAML файл. Пустой путь ничего не делает.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return nil
}

// LoadClient собирает конфигурацию клиента из v
func LoadClient(v *viper.Viper) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadServer собирает конфигурацию сервера из v
func LoadServer(v *viper.Viper) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling server config: %w", err)
	}
	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("token_ttl must be positive")
	}
	return &cfg, nil
}

// Validate проверяет границы значений
func (c *ClientConfig) Validate() error {
	switch {
	case c.ServerURL == "":
		return errors.New("server_url must not be empty")
	case c.DBPath == "":
		return errors.New("db_path must not be empty")
	case c.Sync.Concurrency < 1:
		return fmt.Errorf("sync.concurrency must be at least 1, got %d", c.Sync.Concurrency)
	case c.Sync.MaxRetries < 0:
		return fmt.Errorf("sync.max_retries must not be negative, got %d", c.Sync.MaxRetries)
	case c.Sync.BackoffBase <= 0:
		return errors.New("sync.backoff_base must be positive")
	case c.Sync.BackoffCap < 0:
		return errors.New("sync.backoff_cap must not be negative")
	case c.Sync.RequestTimeout <= 0:
		return errors.New("sync.request_timeout must be positive")
	}
	return nil
}
