package utils

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Session  SessionConfig
	Security SecurityConfig
}

type AppConfig struct {
	Name            string
	Version         string
	Port            string
	Debug           bool
	LogPath         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver   string // sqlite | postgres
	Path     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int
}

type SessionConfig struct {
	Secret        string
	Lifetime      time.Duration
	SweepInterval time.Duration
	Retention     time.Duration
}

type SecurityConfig struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	HashCost         int
}

// LoadConfig reads the optional env file at path, then the process environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	// Set defaults
	v.SetDefault("APP_NAME", "tcg-server")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("PORT", "8765")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "data/tcg.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_LIFETIME", "2h")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "10m")
	v.SetDefault("SESSION_RETENTION", "168h")
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_LOCKOUT", "15m")
	v.SetDefault("PASSWORD_HASH_COST", 10)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:            v.GetString("APP_NAME"),
			Version:         v.GetString("APP_VERSION"),
			Port:            v.GetString("PORT"),
			Debug:           v.GetBool("DEBUG"),
			LogPath:         v.GetString("LOG_PATH"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("DB_DRIVER"),
			Path:     v.GetString("DB_PATH"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt("DB_MAX_CONNS"),
		},
		Session: SessionConfig{
			Secret:        v.GetString("SESSION_SECRET"),
			Lifetime:      v.GetDuration("SESSION_LIFETIME"),
			SweepInterval: v.GetDuration("SESSION_SWEEP_INTERVAL"),
			Retention:     v.GetDuration("SESSION_RETENTION"),
		},
		Security: SecurityConfig{
			MaxLoginAttempts: v.GetInt("LOGIN_MAX_ATTEMPTS"),
			LockoutDuration:  v.GetDuration("LOGIN_LOCKOUT"),
			HashCost:         v.GetInt("PASSWORD_HASH_COST"),
		},
	}

	return config, nil
}
