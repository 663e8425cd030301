package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"github.com/projectsentinel/apiserver/config"
)

const (
	driverName      = "postgres"
	applicationName = "sentinel"
	connectTimeout  = 5 * time.Second
	connMaxIdle     = 2 * time.Minute
	connMaxLife     = 30 * time.Minute
	maxIdleConns    = 5
)

// DSN builds the postgres connection URL for cfg.
func DSN(cfg config.DatabaseConfig) string {
	q := url.Values{}
	q.Set("sslmode", "disable")
	if cfg.UseSSL {
		q.Set("sslmode", "require")
	}
	q.Set("application_name", applicationName)
	q.Set("connect_timeout", strconv.Itoa(int(connectTimeout.Seconds())))

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		User:     url.UserPassword(cfg.User, cfg.Password),
		Path:     cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, DSN(cfg))
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(connMaxIdle)
	db.SetConnMaxLifetime(connMaxLife)
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(min(maxIdleConns, cfg.MaxOpenConns))
	} else {
		db.SetMaxIdleConns(maxIdleConns)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
