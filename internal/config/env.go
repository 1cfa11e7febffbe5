package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Env holds process-level settings that stay out of the settings file.
type Env struct {
	DB       string // SQLite path or postgres:// DSN
	AdminKey string // Bearer token for admin POST endpoints. Empty = disabled.
	RelayKey string // Bearer token for the signal stream. Empty = disabled.
	Port     int

	WeatherKey      string // OpenWeatherMap API key. Empty = mild weather.
	WeatherLocation string
}

// LoadEnv reads .env files (missing files are fine) and then the environment.
func LoadEnv(files ...string) Env {
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("no .env loaded", "error", err)
	}
	env := Env{
		DB:       getenv("WORLDSIM_DB", "data/worldsim.db"),
		AdminKey: os.Getenv("WORLDSIM_ADMIN_KEY"),
		RelayKey: os.Getenv("WORLDSIM_RELAY_KEY"),
		Port:     8080,

		WeatherKey:      os.Getenv("WORLDSIM_WEATHER_KEY"),
		WeatherLocation: os.Getenv("WORLDSIM_WEATHER_LOCATION"),
	}
	if p, err := strconv.Atoi(os.Getenv("WORLDSIM_PORT")); err == nil && p > 0 {
		env.Port = p
	}
	return env
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
