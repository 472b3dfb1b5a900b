package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Candidate config file locations, tried in order when no explicit
// path is given.
var DefaultPaths = []string{"trtc.yml", "config.yml", "./config/trtc.yml"}

// Environment variables overriding secrets in the config file.
const (
	EnvTDXClientID     = "TDX_CLIENT_ID"
	EnvTDXClientSecret = "TDX_CLIENT_SECRET"
	EnvSOAPUsername    = "METRO_SOAP_USERNAME"
	EnvSOAPPassword    = "METRO_SOAP_PASSWORD"
	EnvDatabaseURL     = "DATABASE_URL"
)

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Storage: StorageConfig{
			Backend: "memory",
		},
		Routing: RoutingConfig{
			RideWeight:     3,
			TransferWeight: 5,
			HighThreshold:  0.7,
			LowThreshold:   0.4,
		},
	}
}

// Load reads, completes and validates the configuration. An empty
// path tries DefaultPaths, falling back to Default() when none exist.
// A .env file in the working directory is loaded first, if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}

	cfg := Default()

	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks a configuration against its validate tags.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func readConfigFile(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		return data, nil
	}

	for _, p := range DefaultPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
	}

	return nil, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.TDX.ClientID, EnvTDXClientID)
	set(&cfg.TDX.ClientSecret, EnvTDXClientSecret)
	set(&cfg.Recommender.Username, EnvSOAPUsername)
	set(&cfg.Recommender.Password, EnvSOAPPassword)
	set(&cfg.Storage.PostgresDSN, EnvDatabaseURL)
}
