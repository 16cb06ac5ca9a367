package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Zhima-Mochi/minishop-inventory/internal/config"
	"github.com/Zhima-Mochi/minishop-inventory/internal/pkg/dbquery"

	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
)

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// OptionsFrom takes pool settings from the config, falling back to the defaults.
func OptionsFrom(cfg config.DBConfig) Options {
	opt := DefaultOptions()
	if cfg.MaxOpenConns > 0 {
		opt.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		opt.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		opt.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	return opt
}

// Open opens and pings a pool for the configured driver.
func Open(ctx context.Context, cfg config.DBConfig, opt Options) (*sql.DB, error) {
	driverName, dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if opt.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opt.MaxIdleConns)
	}
	if opt.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opt.ConnMaxLifetime)
	}

	if opt.PingTimeout <= 0 {
		opt.PingTimeout = 5 * time.Second
	}

	pingCtx, cancel := context.WithTimeout(ctx, opt.PingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// DialectFor returns the placeholder dialect of a configured driver.
func DialectFor(driver config.DBDriver) (dbquery.Dialect, error) {
	switch driver {
	case config.DBDriverSQLServer:
		return dbquery.DialectSQLServer, nil
	case config.DBDriverPostgres:
		return dbquery.DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported driver: %q", driver)
	}
}

func buildDSN(cfg config.DBConfig) (driverName string, dsn string, err error) {
	if cfg.Host == "" {
		return "", "", errors.New("db.host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return "", "", errors.New("db.port is invalid")
	}
	if cfg.User == "" {
		return "", "", errors.New("db.user is required")
	}

	switch cfg.Driver {
	case config.DBDriverSQLServer:
		u := &url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		}
		q := url.Values{}
		if cfg.Database != "" {
			q.Set("database", cfg.Database)
		}
		u.RawQuery = q.Encode()
		return "sqlserver", u.String(), nil

	case config.DBDriverPostgres:
		u := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Path:   "/" + cfg.Database,
		}
		q := url.Values{}
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		q.Set("sslmode", sslMode)
		u.RawQuery = q.Encode()
		return "postgres", u.String(), nil

	default:
		return "", "", fmt.Errorf("unsupported driver: %q", cfg.Driver)
	}
}
