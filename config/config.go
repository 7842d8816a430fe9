package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the application's configuration
type Config struct {
	RootModel              string        `mapstructure:"ROOT_MODEL"`
	SubModel               string        `mapstructure:"SUB_MODEL"`
	RootMaxTokens          int           `mapstructure:"ROOT_MAX_TOKENS"`
	SubMaxTokens           int           `mapstructure:"SUB_MAX_TOKENS"`
	MaxIterations          int           `mapstructure:"MAX_ITERATIONS"`
	MaxSubCalls            int           `mapstructure:"MAX_SUB_CALLS"`
	SubCallContextLimit    int           `mapstructure:"SUB_CALL_CONTEXT_LIMIT"`
	MaxOutputChars         int           `mapstructure:"MAX_OUTPUT_CHARS"`
	MaxRetries             int           `mapstructure:"MAX_RETRIES"`
	RetryBaseDelay         time.Duration `mapstructure:"RETRY_BASE_DELAY_SECONDS"`
	CodeTimeout            time.Duration `mapstructure:"CODE_TIMEOUT_SECONDS"`
	PythonBinary           string        `mapstructure:"PYTHON_BINARY"`
	SaveTrajectory         bool          `mapstructure:"SAVE_TRAJECTORY"`
	TrackCosts             bool          `mapstructure:"TRACK_COSTS"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	WebPort                int           `mapstructure:"WEB_PORT"`
	LogLevel               string        `mapstructure:"LOG_LEVEL"`
	RateLimitQueriesPerMin int           `mapstructure:"RATE_LIMIT_QUERIES_PER_MIN"`
	RateLimitBurstSize     int           `mapstructure:"RATE_LIMIT_BURST_SIZE"`
	DocumentCacheSize      int           `mapstructure:"DOCUMENT_CACHE_SIZE"`
	MaxUploadBytes         int64         `mapstructure:"MAX_UPLOAD_BYTES"`
}

func Load(logger *zap.Logger) *Config {
	var config Config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")        // For running locally
	viper.AddConfigPath("./config") // Common config folder
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("ROOT_MODEL", "claude-sonnet-4-5-20250929")
	viper.SetDefault("SUB_MODEL", "claude-haiku-4-5-20251001")
	viper.SetDefault("ROOT_MAX_TOKENS", 16384)
	viper.SetDefault("SUB_MAX_TOKENS", 4096)
	viper.SetDefault("MAX_ITERATIONS", 20)
	viper.SetDefault("MAX_SUB_CALLS", 50)
	viper.SetDefault("SUB_CALL_CONTEXT_LIMIT", 100000)
	viper.SetDefault("MAX_OUTPUT_CHARS", 20000)
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("RETRY_BASE_DELAY_SECONDS", 1)
	viper.SetDefault("CODE_TIMEOUT_SECONDS", 30)
	viper.SetDefault("PYTHON_BINARY", "python3")
	viper.SetDefault("SAVE_TRAJECTORY", true)
	viper.SetDefault("TRACK_COSTS", true)
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("WEB_PORT", 8090)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("RATE_LIMIT_QUERIES_PER_MIN", 20)
	viper.SetDefault("RATE_LIMIT_BURST_SIZE", 5)
	viper.SetDefault("DOCUMENT_CACHE_SIZE", 32)
	viper.SetDefault("MAX_UPLOAD_BYTES", 64<<20)

	if err := viper.ReadInConfig(); err != nil {
		if logger != nil {
			logger.Warn("Could not read config file, using defaults/env vars", zap.Error(err))
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		// Config unmarshaling is critical - fail fast during bootstrap
		if logger != nil {
			logger.Fatal("Unable to decode config into struct", zap.Error(err))
		} else {
			// Fallback if logger not available (should not happen in practice)
			fmt.Fprintf(os.Stderr, "FATAL: Unable to decode config into struct: %v\n", err)
			os.Exit(1)
		}
	}

	// Convert seconds to proper time.Duration
	config.RetryBaseDelay = config.RetryBaseDelay * time.Second
	config.CodeTimeout = config.CodeTimeout * time.Second

	return &config
}
