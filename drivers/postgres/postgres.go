// Package postgres provides the PostgreSQL backend over pgx.
//
// The pool is a bounded pgxpool with acquire bounded by the configured
// timeout; construction performs a round-trip ping. Statements run over the
// extended wire protocol: pgx prepares, binds, executes, and rows stream into
// the shared result-set representation.
//
//	cap, err := postgres.NewConfigAndPool(ctx, postgres.Config{
//	    Host: "localhost", Port: 5432,
//	    User: "app", Password: secret, DBName: "app",
//	    PoolSize: 8,
//	})
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqlmux/sqlmux"
)

// DefaultAcquireTimeout bounds checkout when the config does not set one.
const DefaultAcquireTimeout = 30 * time.Second

// Config describes a PostgreSQL database and its pool.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	// PoolSize bounds the pgx pool. Must be at least 1.
	PoolSize int

	// ConnectTimeout bounds the initial handshake per connection.
	ConnectTimeout time.Duration

	// AcquireTimeout bounds pool checkout.
	AcquireTimeout time.Duration

	// TranslatePlaceholders is the pool-level translation default.
	TranslatePlaceholders bool

	// Logger receives checkout and eviction events. Defaults to no-op.
	Logger sqlmux.Logger
}

// NewConfigAndPool builds the bounded pgx pool, verifies it with a round-trip
// ping, and wraps it in the erased facade.
func NewConfigAndPool(ctx context.Context, cfg Config, opts ...sqlmux.Option) (*sqlmux.ConfigAndPool, error) {
	p, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sqlmux.NewPool(p, opts...), nil
}

type pool struct {
	pool *pgxpool.Pool
	cfg  Config
}

func newPool(ctx context.Context, cfg Config) (*pool, error) {
	if cfg.Host == "" || cfg.DBName == "" {
		return nil, sqlmux.ConfigError("postgres host and database name are required")
	}
	if cfg.PoolSize < 1 {
		return nil, sqlmux.ConfigError("pool size must be at least 1, got %d", cfg.PoolSize)
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = sqlmux.NopLogger()
	}

	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("dbname=%s", cfg.DBName),
		"sslmode=prefer",
	}
	if cfg.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.User))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	if cfg.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(cfg.ConnectTimeout.Seconds())))
	}
	pcfg, err := pgxpool.ParseConfig(strings.Join(parts, " "))
	if err != nil {
		return nil, sqlmux.ConfigError("invalid postgres configuration: %v", err)
	}
	pcfg.MaxConns = int32(cfg.PoolSize)

	pgPool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, sqlmux.ConnectionError("cannot build postgres pool: %v", err)
	}
	if err := pgPool.Ping(ctx); err != nil {
		pgPool.Close()
		return nil, sqlmux.ConnectionError("postgres handshake failed: %v", err)
	}
	return &pool{pool: pgPool, cfg: cfg}, nil
}

func (p *pool) DatabaseType() sqlmux.DatabaseType { return sqlmux.Postgres }

func (p *pool) TranslateByDefault() bool { return p.cfg.TranslatePlaceholders }

func (p *pool) Close() error {
	p.pool.Close()
	return nil
}

// Acquire checks a connection out of the pgx pool, pinging it and evicting
// on failure. The wait is bounded by the acquire timeout.
func (p *pool) Acquire(ctx context.Context) (sqlmux.Executor, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	for {
		pgConn, err := p.pool.Acquire(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, sqlmux.PoolExhausted(sqlmux.Postgres)
			}
			return nil, sqlmux.PoolError(sqlmux.Postgres, err)
		}
		if err := pgConn.Ping(ctx); err != nil {
			p.cfg.Logger.WarnContext(ctx, "postgres liveness ping failed, evicting connection", "error", err)
			_ = pgConn.Conn().Close(ctx)
			pgConn.Release()
			if ctx.Err() != nil {
				return nil, sqlmux.PoolExhausted(sqlmux.Postgres)
			}
			continue
		}
		return &Conn{pool: p, conn: pgConn}, nil
	}
}
