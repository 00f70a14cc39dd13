// Package base provides the shared pool and executor for backends whose
// engine speaks through a database/sql driver (SQL Server, libsql, Turso).
//
// Each concrete driver supplies a Config with the strategies that differ per
// engine:
//   - BindValue converts a unified value into the driver's native argument
//   - ScanValue converts a scanned driver value back into a unified value
//   - WrapError maps a raw driver error onto the sqlmux taxonomy
//
// Everything else — the bounded checkout, the liveness ping with eviction, the
// transaction lifecycle with rollback-on-abandon, prepared statements — is
// identical across these engines and lives here.
package base

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sqlmux/sqlmux"
)

// DefaultAcquireTimeout bounds checkout when the config does not set one.
const DefaultAcquireTimeout = 30 * time.Second

// Config carries the per-engine strategies plus the pool settings.
type Config struct {
	DatabaseType sqlmux.DatabaseType

	// DriverName and DSN are handed to sql.Open.
	DriverName string
	DSN        string

	PoolSize              int
	AcquireTimeout        time.Duration
	TranslatePlaceholders bool
	Logger                sqlmux.Logger

	// BindValue converts a unified value for the given mode.
	BindValue func(v sqlmux.Value, mode sqlmux.BindMode) (any, error)

	// ScanValue converts a value scanned out of the driver.
	ScanValue func(src any) sqlmux.Value

	// WrapError maps a driver error onto the taxonomy, preserving the
	// driver's message verbatim.
	WrapError func(err error) error
}

// Pool is a bounded database/sql-backed pool implementing sqlmux.PoolBackend.
type Pool struct {
	db  *sql.DB
	cfg Config
}

// NewPool opens the database, bounds the pool, and verifies the handshake
// with a round-trip ping.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.PoolSize < 1 {
		return nil, sqlmux.ConfigError("pool size must be at least 1, got %d", cfg.PoolSize)
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = sqlmux.NopLogger()
	}
	db, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, sqlmux.ConfigError("cannot open %s database: %v", cfg.DatabaseType, err)
	}
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, sqlmux.ConnectionError("%s handshake failed: %v", cfg.DatabaseType, err)
	}
	return &Pool{db: db, cfg: cfg}, nil
}

// DB exposes the underlying database handle for driver-specific setup.
func (p *Pool) DB() *sql.DB { return p.db }

// DatabaseType returns the backend tag.
func (p *Pool) DatabaseType() sqlmux.DatabaseType { return p.cfg.DatabaseType }

// TranslateByDefault returns the pool-level translation default.
func (p *Pool) TranslateByDefault() bool { return p.cfg.TranslatePlaceholders }

// Close tears down the pool.
func (p *Pool) Close() error { return p.db.Close() }

// Acquire checks a dedicated connection out of the pool, pinging it and
// evicting on a failed ping. The wait is bounded by the acquire timeout.
func (p *Pool) Acquire(ctx context.Context) (sqlmux.Executor, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	var conn *sql.Conn
	attempt := func() error {
		c, err := p.db.Conn(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := c.PingContext(ctx); err != nil {
			// A failing ping evicts the connection and tries a fresh one.
			p.cfg.Logger.WarnContext(ctx, "liveness ping failed, evicting connection",
				"db", p.cfg.DatabaseType.String(), "error", err)
			evict(c)
			_ = c.Close()
			return err
		}
		conn = c
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, sqlmux.PoolExhausted(p.cfg.DatabaseType)
		}
		return nil, sqlmux.PoolError(p.cfg.DatabaseType, err)
	}
	return &Conn{pool: p, conn: conn}, nil
}

// evict marks the driver connection bad so database/sql destroys it instead
// of repooling it.
func evict(c *sql.Conn) {
	_ = c.Raw(func(driverConn any) error { return driver.ErrBadConn })
}

// Conn is one checked-out connection. It implements sqlmux.Executor.
type Conn struct {
	pool   *Pool
	conn   *sql.Conn
	broken bool
}

// DatabaseType returns the backend tag.
func (c *Conn) DatabaseType() sqlmux.DatabaseType { return c.pool.cfg.DatabaseType }

// TranslateByDefault returns the inherited translation default.
func (c *Conn) TranslateByDefault() bool { return c.pool.cfg.TranslatePlaceholders }

// Raw returns the pinned *sql.Conn.
func (c *Conn) Raw() any { return c.conn }

// Ping checks liveness.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.conn.PingContext(ctx); err != nil {
		return sqlmux.ConnectionError("%s ping failed: %v", c.DatabaseType(), err)
	}
	return nil
}

// MarkBroken flags the connection for destruction on Close.
func (c *Conn) MarkBroken() { c.broken = true }

// Close returns the connection to the pool, destroying it when broken.
func (c *Conn) Close(ctx context.Context) error {
	if c.broken {
		evict(c.conn)
	}
	return c.conn.Close()
}

// ExecuteBatch runs semicolon-separated statements with no parameters.
func (c *Conn) ExecuteBatch(ctx context.Context, sql string) error {
	if _, err := c.conn.ExecContext(ctx, sql); err != nil {
		return c.pool.cfg.WrapError(err)
	}
	return nil
}

// DML executes a write statement and returns the affected-row count.
func (c *Conn) DML(ctx context.Context, query string, params []sqlmux.Value) (int64, error) {
	args, err := c.bindAll(params, sqlmux.BindExecute)
	if err != nil {
		return 0, err
	}
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, c.pool.cfg.WrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, c.pool.cfg.WrapError(err)
	}
	return n, nil
}

// Select executes a read statement and materializes the result set.
func (c *Conn) Select(ctx context.Context, query string, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	args, err := c.bindAll(params, sqlmux.BindQuery)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.pool.cfg.WrapError(err)
	}
	rs, err := CollectRows(rows, c.pool.cfg.ScanValue)
	if err != nil {
		return nil, c.pool.cfg.WrapError(err)
	}
	return rs, nil
}

// Begin opens a transaction on the pinned connection.
func (c *Conn) Begin(ctx context.Context) (sqlmux.TxExecutor, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, c.pool.cfg.WrapError(err)
	}
	return &Tx{conn: c, tx: tx}, nil
}

// Prepare prepares a non-transactional statement on the pinned connection.
func (c *Conn) Prepare(ctx context.Context, query string) (sqlmux.PreparedStatement, error) {
	query = c.translateForPrepare(query)
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, c.pool.cfg.WrapError(err)
	}
	return &Stmt{conn: c, stmt: stmt}, nil
}

// translateForPrepare applies the pool-level translation default. Prepared
// statements bypass the fluent builder, so translation happens here; backends
// whose dialect does not participate (SQL Server) pass through untouched.
func (c *Conn) translateForPrepare(query string) string {
	style, participates := sqlmux.PlaceholderStyleFor(c.DatabaseType())
	if !participates {
		return query
	}
	return sqlmux.TranslatePlaceholders(query, style, c.TranslateByDefault())
}

func (c *Conn) bindAll(params []sqlmux.Value, mode sqlmux.BindMode) ([]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	args := make([]any, len(params))
	for i, p := range params {
		a, err := c.pool.cfg.BindValue(p, mode)
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	return args, nil
}

// Tx is an open transaction on a pinned connection.
type Tx struct {
	conn *Conn
	tx   *sql.Tx
	done bool
}

// ExecuteBatch runs statements inside the transaction.
func (t *Tx) ExecuteBatch(ctx context.Context, sql string) error {
	if t.done {
		return sqlmux.ExecutionError("transaction already finished")
	}
	if _, err := t.tx.ExecContext(ctx, sql); err != nil {
		return t.conn.pool.cfg.WrapError(err)
	}
	return nil
}

// DML executes a write statement inside the transaction.
func (t *Tx) DML(ctx context.Context, query string, params []sqlmux.Value) (int64, error) {
	if t.done {
		return 0, sqlmux.ExecutionError("transaction already finished")
	}
	args, err := t.conn.bindAll(params, sqlmux.BindExecute)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, t.conn.pool.cfg.WrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, t.conn.pool.cfg.WrapError(err)
	}
	return n, nil
}

// Select executes a read statement inside the transaction.
func (t *Tx) Select(ctx context.Context, query string, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	if t.done {
		return nil, sqlmux.ExecutionError("transaction already finished")
	}
	args, err := t.conn.bindAll(params, sqlmux.BindQuery)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, t.conn.pool.cfg.WrapError(err)
	}
	rs, err := CollectRows(rows, t.conn.pool.cfg.ScanValue)
	if err != nil {
		return nil, t.conn.pool.cfg.WrapError(err)
	}
	return rs, nil
}

// Prepare prepares a statement scoped to this transaction.
func (t *Tx) Prepare(ctx context.Context, query string) (sqlmux.PreparedStatement, error) {
	if t.done {
		return nil, sqlmux.ExecutionError("transaction already finished")
	}
	query = t.conn.translateForPrepare(query)
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, t.conn.pool.cfg.WrapError(err)
	}
	return &Stmt{conn: t.conn, stmt: stmt, tx: t}, nil
}

// Commit commits the transaction. A failing commit marks the connection
// broken so it is destroyed instead of repooled.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return sqlmux.ExecutionError("transaction already finished")
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		t.conn.MarkBroken()
		return t.conn.pool.cfg.WrapError(err)
	}
	return nil
}

// Rollback rolls the transaction back. A failing rollback marks the
// connection broken.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return sqlmux.ExecutionError("transaction already finished")
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		t.conn.MarkBroken()
		return t.conn.pool.cfg.WrapError(err)
	}
	return nil
}

// Stmt is a prepared statement, transaction-scoped when tx is set.
type Stmt struct {
	conn   *Conn
	stmt   *sql.Stmt
	tx     *Tx
	closed bool
}

// ExecutePrepared runs the statement as DML.
func (s *Stmt) ExecutePrepared(ctx context.Context, params []sqlmux.Value) (int64, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	args, err := s.conn.bindAll(params, sqlmux.BindExecute)
	if err != nil {
		return 0, err
	}
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, s.conn.pool.cfg.WrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.conn.pool.cfg.WrapError(err)
	}
	return n, nil
}

// QueryPrepared runs the statement as a SELECT.
func (s *Stmt) QueryPrepared(ctx context.Context, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	args, err := s.conn.bindAll(params, sqlmux.BindQuery)
	if err != nil {
		return nil, err
	}
	rows, err := s.stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, s.conn.pool.cfg.WrapError(err)
	}
	rs, err := CollectRows(rows, s.conn.pool.cfg.ScanValue)
	if err != nil {
		return nil, s.conn.pool.cfg.WrapError(err)
	}
	return rs, nil
}

// Close releases the statement. Closing twice is harmless.
func (s *Stmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stmt.Close()
}

func (s *Stmt) usable() error {
	if s.closed {
		return sqlmux.ExecutionError("prepared statement is closed")
	}
	if s.tx != nil && s.tx.done {
		return sqlmux.ExecutionError("prepared statement used after its transaction ended")
	}
	return nil
}

// CollectRows drains rows into a result set, converting each cell with scan.
// All rows share one column sequence and therefore one canonical index map.
func CollectRows(rows *sql.Rows, scan func(any) sqlmux.Value) (*sqlmux.ResultSet, error) {
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := sqlmux.NewResultSet()
	rs.SetColumns(sqlmux.NewColumns(names))

	raw := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		values := make([]sqlmux.Value, len(names))
		for i, cell := range raw {
			values[i] = scan(cell)
		}
		rs.AddRowValues(values)
	}
	return rs, rows.Err()
}
