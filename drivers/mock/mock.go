// Package mock provides an in-memory backend for testing code against the
// erased facade without a real database.
//
// The backend records every operation that reaches it — including the SQL
// text after placeholder translation — and serves canned result sets keyed by
// SQL. It deliberately implements only the capability interfaces; nothing is
// actually executed.
package mock

import (
	"context"
	"sync"

	"github.com/sqlmux/sqlmux"
)

// Op is one recorded operation.
type Op struct {
	// Kind is "batch", "dml", "select", "begin", "commit", "rollback",
	// "prepare", "ping", or "close".
	Kind string
	// SQL is the statement text as the backend received it, after any
	// placeholder translation.
	SQL string
	// Params are the bound values.
	Params []sqlmux.Value
	// InTx reports whether the operation ran inside a transaction.
	InTx bool
}

// Backend is an in-memory sqlmux.PoolBackend.
type Backend struct {
	databaseType     sqlmux.DatabaseType
	translateDefault bool

	mu         sync.Mutex
	ops        []Op
	results    map[string]*sqlmux.ResultSet
	dmlCounts  map[string]int64
	acquireErr error
	execErr    error
}

// New returns a mock backend posing as the given database type.
func New(db sqlmux.DatabaseType, translateDefault bool) *Backend {
	return &Backend{
		databaseType:     db,
		translateDefault: translateDefault,
		results:          make(map[string]*sqlmux.ResultSet),
		dmlCounts:        make(map[string]int64),
	}
}

// SetResult serves rs for the exact (post-translation) SQL text.
func (b *Backend) SetResult(sql string, rs *sqlmux.ResultSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[sql] = rs
}

// SetDMLCount sets the affected-row count reported for the SQL text.
func (b *Backend) SetDMLCount(sql string, n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dmlCounts[sql] = n
}

// SetAcquireError makes every checkout fail with err.
func (b *Backend) SetAcquireError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acquireErr = err
}

// SetExecError makes every batch, DML, select, commit and rollback fail with
// err. Prepared-statement executions are not affected.
func (b *Backend) SetExecError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.execErr = err
}

// Ops returns a copy of the recorded operations.
func (b *Backend) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Op, len(b.ops))
	copy(out, b.ops)
	return out
}

// DatabaseType implements sqlmux.PoolBackend.
func (b *Backend) DatabaseType() sqlmux.DatabaseType { return b.databaseType }

// TranslateByDefault implements sqlmux.PoolBackend.
func (b *Backend) TranslateByDefault() bool { return b.translateDefault }

// Acquire implements sqlmux.PoolBackend.
func (b *Backend) Acquire(ctx context.Context) (sqlmux.Executor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}
	return &conn{backend: b}, nil
}

// Close implements sqlmux.PoolBackend.
func (b *Backend) Close() error { return nil }

func (b *Backend) record(op Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op)
}

func (b *Backend) result(sql string) *sqlmux.ResultSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rs, ok := b.results[sql]; ok {
		return rs
	}
	return sqlmux.NewResultSet()
}

func (b *Backend) dmlCount(sql string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dmlCounts[sql]
}

func (b *Backend) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.execErr
}

type conn struct {
	backend *Backend
}

func (c *conn) DatabaseType() sqlmux.DatabaseType { return c.backend.databaseType }
func (c *conn) TranslateByDefault() bool          { return c.backend.translateDefault }
func (c *conn) Raw() any                          { return c }

func (c *conn) Ping(ctx context.Context) error {
	c.backend.record(Op{Kind: "ping"})
	return nil
}

func (c *conn) ExecuteBatch(ctx context.Context, sql string) error {
	c.backend.record(Op{Kind: "batch", SQL: sql})
	return c.backend.err()
}

func (c *conn) DML(ctx context.Context, sql string, params []sqlmux.Value) (int64, error) {
	c.backend.record(Op{Kind: "dml", SQL: sql, Params: params})
	if err := c.backend.err(); err != nil {
		return 0, err
	}
	return c.backend.dmlCount(sql), nil
}

func (c *conn) Select(ctx context.Context, sql string, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	c.backend.record(Op{Kind: "select", SQL: sql, Params: params})
	if err := c.backend.err(); err != nil {
		return nil, err
	}
	return c.backend.result(sql), nil
}

func (c *conn) Begin(ctx context.Context) (sqlmux.TxExecutor, error) {
	c.backend.record(Op{Kind: "begin", InTx: true})
	return &tx{conn: c}, nil
}

func (c *conn) Prepare(ctx context.Context, sql string) (sqlmux.PreparedStatement, error) {
	c.backend.record(Op{Kind: "prepare", SQL: sql})
	return &stmt{conn: c, sql: sql}, nil
}

func (c *conn) Close(ctx context.Context) error {
	c.backend.record(Op{Kind: "close"})
	return nil
}

type tx struct {
	conn *conn
}

func (t *tx) ExecuteBatch(ctx context.Context, sql string) error {
	t.conn.backend.record(Op{Kind: "batch", SQL: sql, InTx: true})
	return t.conn.backend.err()
}

func (t *tx) DML(ctx context.Context, sql string, params []sqlmux.Value) (int64, error) {
	t.conn.backend.record(Op{Kind: "dml", SQL: sql, Params: params, InTx: true})
	if err := t.conn.backend.err(); err != nil {
		return 0, err
	}
	return t.conn.backend.dmlCount(sql), nil
}

func (t *tx) Select(ctx context.Context, sql string, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	t.conn.backend.record(Op{Kind: "select", SQL: sql, Params: params, InTx: true})
	if err := t.conn.backend.err(); err != nil {
		return nil, err
	}
	return t.conn.backend.result(sql), nil
}

func (t *tx) Prepare(ctx context.Context, sql string) (sqlmux.PreparedStatement, error) {
	t.conn.backend.record(Op{Kind: "prepare", SQL: sql, InTx: true})
	return &stmt{conn: t.conn, sql: sql, inTx: true}, nil
}

func (t *tx) Commit(ctx context.Context) error {
	t.conn.backend.record(Op{Kind: "commit", InTx: true})
	return t.conn.backend.err()
}

func (t *tx) Rollback(ctx context.Context) error {
	t.conn.backend.record(Op{Kind: "rollback", InTx: true})
	return t.conn.backend.err()
}

type stmt struct {
	conn *conn
	sql  string
	inTx bool
}

func (s *stmt) ExecutePrepared(ctx context.Context, params []sqlmux.Value) (int64, error) {
	s.conn.backend.record(Op{Kind: "dml", SQL: s.sql, Params: params, InTx: s.inTx})
	return s.conn.backend.dmlCount(s.sql), nil
}

func (s *stmt) QueryPrepared(ctx context.Context, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	s.conn.backend.record(Op{Kind: "select", SQL: s.sql, Params: params, InTx: s.inTx})
	return s.conn.backend.result(s.sql), nil
}

func (s *stmt) Close() error { return nil }
