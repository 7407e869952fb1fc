package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"watertank/internal/tank"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Listen addresses
	TCPAddr  string `env:"TCP_ADDR" default:"0.0.0.0:9977"`
	WSAddr   string `env:"WS_ADDR" default:"0.0.0.0:7799"`
	HTTPAddr string `env:"HTTP_ADDR" default:"0.0.0.0:8080"`

	// Simulation
	TickInterval    time.Duration `env:"TICK_INTERVAL" default:"300ms"`
	ControlCapacity int           `env:"CONTROL_CAPACITY" default:"2"`
	RNGSeed         uint64        `env:"RNG_SEED" default:"0"` // 0 = seed from the clock

	// Controller connections
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" default:"5m"`
	ControlRate  float64       `env:"CONTROL_RATE" default:"50"`
	ControlBurst int           `env:"CONTROL_BURST" default:"100"`

	// Counter stream
	StreamInterval time.Duration `env:"STREAM_INTERVAL" default:"100ms"`

	// Redis snapshot mirror (disabled when REDIS_URL is empty)
	RedisURL string        `env:"REDIS_URL"`
	RedisKey string        `env:"REDIS_KEY" default:"tank:latest"`
	RedisTTL time.Duration `env:"REDIS_TTL" default:"1m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`

	// Initial tank
	Tank tank.State
}

// LoadConfig loads configuration from .env and environment variables
func LoadConfig() (*Config, error) {
	// a missing .env file is fine, system env vars still apply
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{}
	def := tank.Default()

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// Addresses
	if err := loadEnvString(&config.TCPAddr, "TCP_ADDR", "0.0.0.0:9977"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.WSAddr, "WS_ADDR", "0.0.0.0:7799"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.HTTPAddr, "HTTP_ADDR", "0.0.0.0:8080"); err != nil {
		return nil, err
	}

	// Simulation
	if err := loadEnvDuration(&config.TickInterval, "TICK_INTERVAL", 300*time.Millisecond); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ControlCapacity, "CONTROL_CAPACITY", 2); err != nil {
		return nil, err
	}
	if err := loadEnvUint64(&config.RNGSeed, "RNG_SEED", 0); err != nil {
		return nil, err
	}

	// Connections
	if err := loadEnvDuration(&config.ReadTimeout, "READ_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.ControlRate, "CONTROL_RATE", 50); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ControlBurst, "CONTROL_BURST", 100); err != nil {
		return nil, err
	}

	// Stream
	if err := loadEnvDuration(&config.StreamInterval, "STREAM_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, err
	}

	// Redis
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisKey, "REDIS_KEY", "tank:latest"); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.RedisTTL, "REDIS_TTL", time.Minute); err != nil {
		return nil, err
	}

	// Logging
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "json"); err != nil {
		return nil, err
	}

	// Tank
	tankFields := []struct {
		target *float64
		key    string
		def    float64
	}{
		{&config.Tank.Level, "TANK_LEVEL", def.Level},
		{&config.Tank.Areal, "TANK_AREAL", def.Areal},
		{&config.Tank.Height, "TANK_HEIGHT", def.Height},
		{&config.Tank.Inflow, "TANK_INFLOW", def.Inflow},
		{&config.Tank.InflowMean, "TANK_INFLOW_MEAN", def.InflowMean},
		{&config.Tank.InflowStdDev, "TANK_INFLOW_STDDEV", def.InflowStdDev},
		{&config.Tank.Outflow, "TANK_OUTFLOW", def.Outflow},
		{&config.Tank.MaxOutflow, "TANK_MAX_OUTFLOW", def.MaxOutflow},
		{&config.Tank.MaxInflow, "TANK_MAX_INFLOW", def.MaxInflow},
		{&config.Tank.SetLevel, "TANK_SET_LEVEL", def.SetLevel},
	}
	for _, f := range tankFields {
		if err := loadEnvFloat(f.target, f.key, f.def); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvUint64(target *uint64, key string, defaultValue uint64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	for key, addr := range map[string]string{"TCP_ADDR": c.TCPAddr, "WS_ADDR": c.WSAddr, "HTTP_ADDR": c.HTTPAddr} {
		if !strings.Contains(addr, ":") {
			errors = append(errors, fmt.Sprintf("%s must be host:port, got %q", key, addr))
		}
	}

	if c.TickInterval <= 0 {
		errors = append(errors, "TICK_INTERVAL must be positive")
	}
	if c.StreamInterval <= 0 {
		errors = append(errors, "STREAM_INTERVAL must be positive")
	}
	if c.ReadTimeout <= 0 {
		errors = append(errors, "READ_TIMEOUT must be positive")
	}
	if c.ControlCapacity < 1 {
		errors = append(errors, "CONTROL_CAPACITY must be at least 1")
	}
	if c.ControlRate <= 0 || c.ControlBurst < 1 {
		errors = append(errors, "CONTROL_RATE must be positive and CONTROL_BURST at least 1")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	// Validate log format
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if _, err := tank.New(c.Tank); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger described by LOG_LEVEL and LOG_FORMAT
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
