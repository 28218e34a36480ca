package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mirror-backend/internal/shared/telemetry"
)

// ErrNoURL is returned by Connect when no connection string is given.
var ErrNoURL = errors.New("database url is empty")

// Options tunes the lead database pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	// Attempts is how many pings Connect tries before giving up. Compose
	// setups start the API before postgres accepts connections.
	Attempts   int
	RetryDelay time.Duration
}

var openDB = sql.Open

// DefaultServerOptions is sized for the API and the lead worker.
func DefaultServerOptions() Options {
	return Options{
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		PingTimeout:     3 * time.Second,
		Attempts:        3,
		RetryDelay:      time.Second,
	}
}

// DefaultMigrateOptions holds a single connection and fails fast.
func DefaultMigrateOptions() Options {
	return Options{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
		Attempts:        1,
	}
}

// OptionsFromEnv layers LEADS_DB_* variables over base. Unparseable values
// are logged and ignored.
func OptionsFromEnv(base Options) Options {
	opts := base
	ints := []struct {
		key string
		dst *int
	}{
		{"LEADS_DB_MAX_OPEN", &opts.MaxOpenConns},
		{"LEADS_DB_MAX_IDLE", &opts.MaxIdleConns},
		{"LEADS_DB_CONNECT_ATTEMPTS", &opts.Attempts},
	}
	for _, f := range ints {
		raw, ok := lookup(f.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			telemetry.Warn("db.env_ignored", map[string]any{"key": f.key, "value": raw})
			continue
		}
		*f.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LEADS_DB_CONN_LIFETIME", &opts.ConnMaxLifetime},
		{"LEADS_DB_CONN_IDLE_TIME", &opts.ConnMaxIdleTime},
		{"LEADS_DB_PING_TIMEOUT", &opts.PingTimeout},
		{"LEADS_DB_RETRY_DELAY", &opts.RetryDelay},
	}
	for _, f := range durations {
		raw, ok := lookup(f.key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			telemetry.Warn("db.env_ignored", map[string]any{"key": f.key, "value": raw})
			continue
		}
		*f.dst = d
	}
	return opts
}

func lookup(key string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	return raw, raw != ""
}

// Connect opens a pgx-backed pool and pings it, retrying up to
// opts.Attempts times. The caller owns the returned pool.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, ErrNoURL
	}

	pool, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configurePool(pool, opts)

	if err := pingWithRetry(ctx, pool, opts); err != nil {
		_ = pool.Close()
		return nil, err
	}

	stats := pool.Stats()
	telemetry.Info("db.connected", map[string]any{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
	})
	return pool, nil
}

func configurePool(pool *sql.DB, opts Options) {
	if opts.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func pingWithRetry(ctx context.Context, pool *sql.DB, opts Options) error {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var err error
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = pool.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		telemetry.Warn("db.ping_retry", map[string]any{"attempt": i, "error": err.Error()})
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(opts.RetryDelay):
		}
	}
	return fmt.Errorf("ping database after %d attempt(s): %w", attempts, err)
}

// RegisterPoolMetrics exports pool statistics on reg under the given name.
// Registering the same name twice is not an error.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *sql.DB, name string) error {
	if reg == nil || pool == nil {
		return nil
	}
	err := reg.Register(collectors.NewDBStatsCollector(pool, name))
	var dup prometheus.AlreadyRegisteredError
	if errors.As(err, &dup) {
		return nil
	}
	return err
}
