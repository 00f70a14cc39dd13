package sqlmux

import "context"

// BindMode tells a parameter marshaller whether the values are bound for a
// read path or a write path. Some drivers force the distinction; backends that
// do not support a mode return an unimplemented-category error.
type BindMode int

const (
	// BindQuery marks values bound for a SELECT.
	BindQuery BindMode = iota
	// BindExecute marks values bound for statement execution.
	BindExecute
)

// Executor is the capability set a backend connection implements. Driver
// packages under drivers/ implement it; application code never sees it
// directly — it is erased behind Conn.
type Executor interface {
	// DatabaseType returns the backend tag.
	DatabaseType() DatabaseType

	// TranslateByDefault returns the pool-level placeholder translation
	// default this connection inherited.
	TranslateByDefault() bool

	// ExecuteBatch runs one or more semicolon-separated statements with no
	// parameters and no result set.
	ExecuteBatch(ctx context.Context, sql string) error

	// DML executes a write statement and returns the affected-row count.
	DML(ctx context.Context, sql string, params []Value) (int64, error)

	// Select executes a read statement and materializes the full result set.
	Select(ctx context.Context, sql string, params []Value) (*ResultSet, error)

	// Begin opens a transaction.
	Begin(ctx context.Context) (TxExecutor, error)

	// Prepare prepares a non-transactional statement. Backends whose driver
	// scopes statements to a transaction return an unimplemented error.
	Prepare(ctx context.Context, sql string) (PreparedStatement, error)

	// Ping checks liveness.
	Ping(ctx context.Context) error

	// Raw returns the backend-native handle for features the facade does not
	// cover. Callers type-assert on it.
	Raw() any

	// Close returns the connection to its pool, or destroys it when it has
	// been marked broken.
	Close(ctx context.Context) error
}

// TxExecutor is the capability set of an open transaction.
type TxExecutor interface {
	// ExecuteBatch runs statements inside the open transaction.
	ExecuteBatch(ctx context.Context, sql string) error

	// DML executes a write statement inside the open transaction.
	DML(ctx context.Context, sql string, params []Value) (int64, error)

	// Select executes a read statement inside the open transaction.
	Select(ctx context.Context, sql string, params []Value) (*ResultSet, error)

	// Prepare prepares a statement scoped to this transaction.
	Prepare(ctx context.Context, sql string) (PreparedStatement, error)

	// Commit commits and returns the connection to idle.
	Commit(ctx context.Context) error

	// Rollback rolls back and returns the connection to idle.
	Rollback(ctx context.Context) error
}

// PreparedStatement is an opaque prepared-statement handle. Transaction-scoped
// handles die with their transaction; using one afterwards is an error (an
// execution error on sqlite and the database/sql backends, the driver's
// closed-transaction error on postgres). A PreparedStatement is not safe for
// concurrent use.
type PreparedStatement interface {
	// ExecutePrepared runs the statement as DML and returns affected rows.
	ExecutePrepared(ctx context.Context, params []Value) (int64, error)

	// QueryPrepared runs the statement as a SELECT.
	QueryPrepared(ctx context.Context, params []Value) (*ResultSet, error)

	// Close releases the statement early. Closing twice is harmless.
	Close() error
}

// TxAbandoner is implemented by transaction executors whose abandonment path
// differs from an explicit rollback — the embedded engine hands an owned
// rollback command to its worker, and the test-only skip hook lives there.
// Tx.Close prefers it when present.
type TxAbandoner interface {
	RollbackAbandoned(ctx context.Context) error
}

// PoolBackend is the variant-specific pool behind ConfigAndPool.
type PoolBackend interface {
	// DatabaseType returns the backend tag.
	DatabaseType() DatabaseType

	// TranslateByDefault returns the pool-level translation default.
	TranslateByDefault() bool

	// Acquire checks a connection out of the pool, honoring ctx for the
	// bounded wait.
	Acquire(ctx context.Context) (Executor, error)

	// Close tears the pool down.
	Close() error
}

// statementTarget is what the fluent QueryBuilder executes against; both Conn
// and Tx satisfy it.
type statementTarget interface {
	databaseType() DatabaseType
	translateDefault() bool
	execBatch(ctx context.Context, sql string) error
	execDML(ctx context.Context, sql string, params []Value) (int64, error)
	execSelect(ctx context.Context, sql string, params []Value) (*ResultSet, error)
	prepare(ctx context.Context, sql string) (PreparedStatement, error)
}

// Conn is the erased connection handle checked out of a pool. Its variants are
// not part of the contract; capability is reached through methods, and Raw is
// the escape hatch for anything backend-specific.
//
// A Conn is the Idle half of the transaction typestate: only Conn carries
// Begin, and the tx-scoped operations live on Tx alone. A Conn is not safe for
// concurrent use.
type Conn struct {
	exec     Executor
	logger   Logger
	tx       *Tx
	released bool
}

// DatabaseType returns the backend tag carried by this connection.
func (c *Conn) DatabaseType() DatabaseType { return c.exec.DatabaseType() }

// Raw returns the backend-native handle. The concrete type depends on the
// driver package the pool came from.
func (c *Conn) Raw() any { return c.exec.Raw() }

// Query starts a fluent statement against this connection:
//
//	rs, err := conn.Query("SELECT a FROM t WHERE a = $1").
//	    Params(sqlmux.Int(7)).
//	    Translation(sqlmux.TranslateOn).
//	    Select(ctx)
func (c *Conn) Query(sql string) *QueryBuilder {
	return &QueryBuilder{target: c, sql: sql}
}

// ExecuteBatch runs one or more semicolon-separated statements, no parameters,
// no result set.
func (c *Conn) ExecuteBatch(ctx context.Context, sql string) error {
	return c.execBatch(ctx, sql)
}

// DML executes a write statement and returns the affected-row count.
func (c *Conn) DML(ctx context.Context, sql string, params ...Value) (int64, error) {
	return c.Query(sql).Params(params...).DML(ctx)
}

// Select executes a read statement and returns the materialized result set.
func (c *Conn) Select(ctx context.Context, sql string, params ...Value) (*ResultSet, error) {
	return c.Query(sql).Params(params...).Select(ctx)
}

// Prepare prepares a non-transactional statement on backends that support it.
// The embedded engine scopes prepared statements to transactions and returns
// an unimplemented error here; use Tx.Prepare instead.
func (c *Conn) Prepare(ctx context.Context, sql string) (PreparedStatement, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.exec.Prepare(ctx, sql)
}

// Ping checks connection liveness.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.exec.Ping(ctx)
}

// Begin opens a transaction and hands back the InTx wrapper. The returned Tx
// is the only way to run tx-scoped statements; finish it with Commit or
// Rollback, or let a deferred Close roll it back.
func (c *Conn) Begin(ctx context.Context) (*Tx, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	txe, err := c.exec.Begin(ctx)
	if err != nil {
		return nil, err
	}
	tx := &Tx{exec: txe, conn: c}
	c.tx = tx
	return tx, nil
}

// Release returns the connection to its pool. An open transaction is rolled
// back first — the same guarantee a dropped Tx has — and a connection whose
// rollback could not be confirmed is evicted rather than repooled.
func (c *Conn) Release() {
	if c.released {
		return
	}
	c.released = true
	ctx := context.Background()
	if c.tx != nil && !c.tx.done {
		if err := c.tx.Close(); err != nil {
			c.logger.WarnContext(ctx, "rollback on release failed", "db", c.exec.DatabaseType().String(), "error", err)
		}
	}
	if err := c.exec.Close(ctx); err != nil {
		c.logger.WarnContext(ctx, "connection close failed", "db", c.exec.DatabaseType().String(), "error", err)
	}
}

func (c *Conn) usable() error {
	if c.released {
		return ConnectionError("connection has been released")
	}
	return nil
}

func (c *Conn) databaseType() DatabaseType { return c.exec.DatabaseType() }
func (c *Conn) translateDefault() bool     { return c.exec.TranslateByDefault() }

func (c *Conn) execBatch(ctx context.Context, sql string) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.exec.ExecuteBatch(ctx, sql)
}

func (c *Conn) execDML(ctx context.Context, sql string, params []Value) (int64, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	return c.exec.DML(ctx, sql, params)
}

func (c *Conn) execSelect(ctx context.Context, sql string, params []Value) (*ResultSet, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.exec.Select(ctx, sql, params)
}

func (c *Conn) prepare(ctx context.Context, sql string) (PreparedStatement, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.exec.Prepare(ctx, sql)
}

// Tx is the InTx half of the transaction typestate. It is produced only by
// Conn.Begin and consumed by Commit or Rollback; there is no other conversion
// between the two states.
//
// Dropping a Tx without finishing it must not leak the open transaction:
// Close rolls back if neither Commit nor Rollback ran, and Conn.Release calls
// Close on any open Tx before the connection re-enters the pool. The idiomatic
// shape is
//
//	tx, err := conn.Begin(ctx)
//	if err != nil { return err }
//	defer tx.Close()
//	...
//	return tx.Commit(ctx)
//
// A Tx is not safe for concurrent use.
type Tx struct {
	exec TxExecutor
	conn *Conn
	done bool
}

// Query starts a fluent statement inside the open transaction.
func (t *Tx) Query(sql string) *QueryBuilder {
	return &QueryBuilder{target: t, sql: sql}
}

// ExecuteBatch runs statements inside the open transaction.
func (t *Tx) ExecuteBatch(ctx context.Context, sql string) error {
	return t.execBatch(ctx, sql)
}

// DML executes a write statement inside the open transaction.
func (t *Tx) DML(ctx context.Context, sql string, params ...Value) (int64, error) {
	return t.Query(sql).Params(params...).DML(ctx)
}

// Select executes a read statement inside the open transaction.
func (t *Tx) Select(ctx context.Context, sql string, params ...Value) (*ResultSet, error) {
	return t.Query(sql).Params(params...).Select(ctx)
}

// Prepare prepares a statement scoped to this transaction. The handle dies
// with the transaction.
func (t *Tx) Prepare(ctx context.Context, sql string) (PreparedStatement, error) {
	if err := t.open(); err != nil {
		return nil, err
	}
	return t.exec.Prepare(ctx, sql)
}

// Commit commits the transaction and returns the connection to idle. On
// commit failure the connection is marked broken and will be evicted.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.open(); err != nil {
		return err
	}
	t.finish()
	return t.exec.Commit(ctx)
}

// Rollback rolls the transaction back and returns the connection to idle.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.open(); err != nil {
		return err
	}
	t.finish()
	return t.exec.Rollback(ctx)
}

// Close rolls the transaction back when it is still open. After Commit or
// Rollback it does nothing, which makes it safe to defer unconditionally.
// This is the drop protocol: an abandoned Tx never leaks its open transaction
// into the pool.
func (t *Tx) Close() error {
	if t.done {
		return nil
	}
	t.finish()
	if a, ok := t.exec.(TxAbandoner); ok {
		return a.RollbackAbandoned(context.Background())
	}
	return t.exec.Rollback(context.Background())
}

func (t *Tx) open() error {
	if t.done {
		return ExecutionError("transaction already finished")
	}
	return nil
}

func (t *Tx) finish() {
	t.done = true
	if t.conn != nil && t.conn.tx == t {
		t.conn.tx = nil
	}
}

func (t *Tx) databaseType() DatabaseType { return t.conn.databaseType() }
func (t *Tx) translateDefault() bool     { return t.conn.translateDefault() }

func (t *Tx) execBatch(ctx context.Context, sql string) error {
	if err := t.open(); err != nil {
		return err
	}
	return t.exec.ExecuteBatch(ctx, sql)
}

func (t *Tx) execDML(ctx context.Context, sql string, params []Value) (int64, error) {
	if err := t.open(); err != nil {
		return 0, err
	}
	return t.exec.DML(ctx, sql, params)
}

func (t *Tx) execSelect(ctx context.Context, sql string, params []Value) (*ResultSet, error) {
	if err := t.open(); err != nil {
		return nil, err
	}
	return t.exec.Select(ctx, sql, params)
}

func (t *Tx) prepare(ctx context.Context, sql string) (PreparedStatement, error) {
	if err := t.open(); err != nil {
		return nil, err
	}
	return t.exec.Prepare(ctx, sql)
}
