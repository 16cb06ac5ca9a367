package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("config not found")

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, ErrNotFound
		}
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	return Config{}, err
}

// FromEnv loads CONFIG_FILE (default config.yaml), applies env overrides and validates.
func FromEnv() (Config, error) {
	cfg, err := LoadOrDefault(getenvDefault("CONFIG_FILE", "config.yaml"))
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.ServiceName = getenvDefault("SERVICE_NAME", cfg.ServiceName)
	cfg.Env = getenvDefault("ENV", cfg.Env)
	cfg.HTTP.Listen = getenvDefault("HTTP_ADDR", cfg.HTTP.Listen)

	cfg.DB.Driver = DBDriver(getenvDefault("DB_DRIVER", string(cfg.DB.Driver)))
	cfg.DB.Host = getenvDefault("DB_HOST", cfg.DB.Host)
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT: %w", err)
		}
		cfg.DB.Port = port
	}
	cfg.DB.User = getenvDefault("DB_USER", cfg.DB.User)
	cfg.DB.Password = getenvDefault("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Database = getenvDefault("DB_NAME", cfg.DB.Database)
	cfg.DB.TablePrefix = getenvDefault("DB_TABLE_PREFIX", cfg.DB.TablePrefix)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers := make([]string, 0)
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Kafka.Brokers = brokers
	}
	cfg.Kafka.Topic = getenvDefault("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Telemetry.OTLPEndpoint = getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
