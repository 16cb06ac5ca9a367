package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

type DBDriver string

const (
	DBDriverSQLServer DBDriver = "sqlserver"
	DBDriverPostgres  DBDriver = "postgres"
)

func DBDriverValues() []DBDriver {
	return []DBDriver{DBDriverSQLServer, DBDriverPostgres}
}

type DBConfig struct {
	Driver          DBDriver      `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	TablePrefix     string        `yaml:"tablePrefix"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	QueryTimeout    time.Duration `yaml:"queryTimeout"`
}

type HTTPConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	Insecure     bool   `yaml:"insecure"`
}

type Config struct {
	ServiceName string          `yaml:"serviceName"`
	Env         string          `yaml:"env"`
	HTTP        HTTPConfig      `yaml:"http"`
	DB          DBConfig        `yaml:"db"`
	Kafka       KafkaConfig     `yaml:"kafka"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

func Default() Config {
	return Config{
		ServiceName: "minishop-inventory",
		Env:         "dev",
		HTTP: HTTPConfig{
			Listen:          ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DBConfig{
			Driver:          DBDriverSQLServer,
			Host:            "localhost",
			Port:            1433,
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "inventory.shipments",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return errors.New("serviceName is required")
	}
	if err := validateListenAddr(c.HTTP.Listen); err != nil {
		return err
	}

	if !slices.Contains(DBDriverValues(), c.DB.Driver) {
		return fmt.Errorf("db.driver %q is not supported (want one of %v)", c.DB.Driver, DBDriverValues())
	}
	if c.DB.Host == "" {
		return errors.New("db.host is required")
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		return errors.New("db.port is invalid")
	}
	if c.Kafka.Enabled() && strings.TrimSpace(c.Kafka.Topic) == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	return nil
}

func validateListenAddr(addr string) error {
	if addr == "" {
		return errors.New("http.listen is required")
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.New("http.listen must be in host:port format")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return errors.New("http.listen port is invalid")
	}
	return nil
}
