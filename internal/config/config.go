// Package config provides configuration loading from flags and environment variables.
package config

import (
	"time"

	"github.com/jessevdk/go-flags"
)

// ServiceConfig holds configuration for the agent-host service.
// Backend-specific settings are read separately through a Source.
type ServiceConfig struct {
	Backend           string        `long:"backend" env:"BACKEND" required:"true" choice:"aci" choice:"kubernetes" choice:"docker" description:"Backend that provisions agents"`
	Port              string        `long:"port" env:"PORT" default:"8080" description:"API listen port"`
	MetricsPort       string        `long:"metrics-port" env:"METRICS_PORT" default:"9090" description:"Metrics listen port"`
	APIKeyFile        string        `long:"api-key-file" env:"API_KEY_FILE" description:"File holding the bearer token for the API (auth disabled when empty)"`
	ShutdownDrainWait time.Duration `long:"shutdown-drain-wait" env:"SHUTDOWN_DRAIN_WAIT" default:"5s" description:"Time to wait for load balancer to drain (0 to skip)"`
	InitTimeout       time.Duration `long:"init-timeout" env:"INIT_TIMEOUT" default:"2m" description:"Deadline for backend initialization at startup"`
	LogLevel          string        `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Minimum log level"`

	APIKey string `no-flag:"true"`
}

// LoadServiceConfig parses command line arguments, falling back to environment variables.
func LoadServiceConfig(args []string) (*ServiceConfig, error) {
	cfg := &ServiceConfig{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if cfg.APIKeyFile != "" {
		key, err := GetSecretFile("API_KEY_FILE", cfg.APIKeyFile)
		if err != nil {
			return nil, err
		}
		cfg.APIKey = key
	}
	return cfg, nil
}
