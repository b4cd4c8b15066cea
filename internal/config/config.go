package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "JUDGEPOOL"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "judgepool.db"
	defaultLogLevel          = "info"
	defaultTokenTTLMinutes   = 720
	defaultPreloadBatchSize  = 10
	defaultMaxTxAttempts     = 5
	defaultStrictUserCapping = false
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress      string
	DatabasePath     string
	LogLevel         string
	SigningSecret    string
	TokenTTL         time.Duration
	PreloadBatchSize int
	MaxTxAttempts    int
	StrictUserCap    bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("engine.preload_batch_size", defaultPreloadBatchSize)
	configViper.SetDefault("engine.max_tx_attempts", defaultMaxTxAttempts)
	configViper.SetDefault("engine.strict_user_cap", defaultStrictUserCapping)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		TokenTTL:         time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		PreloadBatchSize: configViper.GetInt("engine.preload_batch_size"),
		MaxTxAttempts:    configViper.GetInt("engine.max_tx_attempts"),
		StrictUserCap:    configViper.GetBool("engine.strict_user_cap"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.PreloadBatchSize < 1 {
		return fmt.Errorf("engine.preload_batch_size must be at least 1")
	}
	if c.MaxTxAttempts < 1 {
		return fmt.Errorf("engine.max_tx_attempts must be at least 1")
	}
	return nil
}
