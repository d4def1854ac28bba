package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/turtacn/metabo-search/internal/config"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
)

// driverName is the database/sql driver registered by pgx/v5/stdlib.
const driverName = "pgx"

// sqlOpen is a variable to allow mocking in tests.
var sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// pingTimeout bounds the connectivity check performed by NewConnection.
const pingTimeout = 5 * time.Second

// Connection manages the PostgreSQL connection pool shared by the
// repositories.
type Connection struct {
	db     *sql.DB
	cfg    config.DatabaseConfig
	logger logging.Logger
	once   sync.Once
}

// NewConnection opens the pool described by cfg and verifies it with a ping.
func NewConnection(cfg config.DatabaseConfig, log logging.Logger) (*Connection, error) {
	db, err := sqlOpen(driverName, buildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open database connection")
	}

	configurePool(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "database connection failed")
	}

	log.Info("Connected to PostgreSQL database",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.DBName),
	)

	return &Connection{db: db, cfg: cfg, logger: log}, nil
}

// NewConnectionWithDB wraps an existing pool (for testing).
func NewConnectionWithDB(db *sql.DB, log logging.Logger) *Connection {
	return &Connection{db: db, logger: log}
}

func configurePool(db *sql.DB, cfg config.DatabaseConfig) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = config.DefaultDBMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)

	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = config.DefaultDBMaxIdleConns
	}
	db.SetMaxIdleConns(maxIdle)

	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = config.DefaultDBConnMaxLifetime
	}
	db.SetConnMaxLifetime(lifetime)

	idle := cfg.ConnMaxIdleTime
	if idle <= 0 {
		idle = config.DefaultDBConnMaxIdleTime
	}
	db.SetConnMaxIdleTime(idle)
}

// DB returns the underlying pool.
func (c *Connection) DB() *sql.DB {
	return c.db
}

// HealthCheck pings the database and warns when the pool is nearly
// exhausted.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "database health check failed")
	}

	stats := c.Stats()
	if stats.OpenConnections > 0 {
		usage := float64(stats.InUse) / float64(stats.OpenConnections)
		if usage > 0.8 {
			c.logger.Warn("High database connection pool usage",
				logging.Int("in_use", stats.InUse),
				logging.Int("open", stats.OpenConnections),
				logging.Float64("usage", usage),
			)
		}
	}
	return nil
}

// Stats returns pool statistics.
func (c *Connection) Stats() sql.DBStats {
	return c.db.Stats()
}

// Close closes the pool.  Subsequent calls are no-ops.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		err = c.db.Close()
		if err == nil {
			c.logger.Info("Closed PostgreSQL database connection")
		} else {
			c.logger.Error("Failed to close PostgreSQL database connection", logging.Err(err))
		}
	})
	return err
}

// buildDSN renders cfg as a postgres:// URL.  pgx forwards unknown query
// parameters as run-time settings, which is how statement_timeout and
// application_name reach the server.
func buildDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.DBName,
	}

	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	} else {
		q.Set("sslmode", config.DefaultDBSSLMode)
	}

	timeout := cfg.StatementTimeout
	if timeout <= 0 {
		timeout = config.DefaultDBStatementTimeout
	}
	q.Set("statement_timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	q.Set("application_name", "metabo-search")

	u.RawQuery = q.Encode()
	return u.String()
}
