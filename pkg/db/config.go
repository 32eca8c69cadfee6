package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Pool limits; zero keeps the defaults below.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const (
	defaultMaxOpenConns    = 20
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = time.Hour
)

// DSN renders the connection URL understood by lib/pq.
func (c PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

func (c PostgresConfig) applyPool(conn *sql.DB) {
	open, idle, life := c.MaxOpenConns, c.MaxIdleConns, c.ConnMaxLifetime
	if open <= 0 {
		open = defaultMaxOpenConns
	}
	if idle <= 0 {
		idle = defaultMaxIdleConns
	}
	if idle > open {
		idle = open
	}
	if life <= 0 {
		life = defaultConnMaxLifetime
	}
	conn.SetMaxOpenConns(open)
	conn.SetMaxIdleConns(idle)
	conn.SetConnMaxLifetime(life)
}
