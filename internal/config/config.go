package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds everything the client needs: where the fridge service lives,
// how to authenticate, and where the local cache database sits.
type Config struct {
	APIURL    string `validate:"required,url"`
	APIKey    string `validate:"required"`
	DBPath    string `validate:"required"`
	Addr      string
	LogLevel  string
	LogFormat string
}

// Load reads configuration from a .env file (if present) and the
// environment. Missing values fall back to defaults; required remote
// settings are checked by Validate, not here, so cache-only use stays
// possible without credentials.
func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		APIURL:    os.Getenv("FRIGO_API_URL"),
		APIKey:    os.Getenv("FRIGO_API_KEY"),
		DBPath:    getEnv("FRIGO_DB_PATH", "frigo.db"),
		Addr:      getEnv("FRIGO_ADDR", ":8090"),
		LogLevel:  getEnv("FRIGO_LOG_LEVEL", "info"),
		LogFormat: getEnv("FRIGO_LOG_FORMAT", "text"),
	}
}

// Validate checks that the remote target is fully specified: a well-formed
// base URL and a non-empty API key. Required before any gateway call.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			switch fe.Field() {
			case "APIURL":
				return fmt.Errorf("FRIGO_API_URL must be a valid URL")
			case "APIKey":
				return fmt.Errorf("FRIGO_API_KEY must be set")
			case "DBPath":
				return fmt.Errorf("FRIGO_DB_PATH must be set")
			}
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
