package config

import (
	"github.com/caarlos0/env/v11"
)

// loadFromEnv overrides configuration with environment variables. Only
// variables that are set replace the file or default values.
func loadFromEnv(config *Config) error {
	return env.Parse(config)
}
