package sqlite

import (
	"context"
	"database/sql"

	"github.com/sqlmux/sqlmux"
	"github.com/sqlmux/sqlmux/drivers/base"
)

// Conn is exclusive ownership of one pooled worker. It implements
// sqlmux.Executor and is also what sqlmux.Conn.Raw returns for this backend,
// so escape-hatch code can reach the pinned driver connection through
// Interact.
type Conn struct {
	pool   *pool
	worker *worker
}

// DatabaseType returns the backend tag.
func (c *Conn) DatabaseType() sqlmux.DatabaseType { return sqlmux.Sqlite }

// TranslateByDefault returns the pool-level translation default.
func (c *Conn) TranslateByDefault() bool { return c.pool.cfg.TranslatePlaceholders }

// Raw returns this handle itself; type-assert to *sqlite.Conn and use
// Interact for raw driver access.
func (c *Conn) Raw() any { return c }

// Interact runs fn on the worker goroutine with the pinned driver
// connection. The connection must not escape fn.
func (c *Conn) Interact(ctx context.Context, fn func(*sql.Conn) error) error {
	w, err := c.alive()
	if err != nil {
		return err
	}
	resp, err := w.post(ctx, request{kind: cmdInteract, fn: fn})
	if err != nil {
		return err
	}
	return resp.err
}

// ExecuteBatch runs semicolon-separated statements outside any transaction.
// It fails while a transaction is open on this handle.
func (c *Conn) ExecuteBatch(ctx context.Context, sqlText string) error {
	resp, err := c.command(ctx, request{kind: cmdExecBatch, sql: sqlText})
	if err != nil {
		return err
	}
	return resp.err
}

// DML executes a write statement and returns the affected-row count.
func (c *Conn) DML(ctx context.Context, sqlText string, params []sqlmux.Value) (int64, error) {
	args, err := bindAll(params, sqlmux.BindExecute)
	if err != nil {
		return 0, err
	}
	resp, err := c.command(ctx, request{kind: cmdDML, sql: sqlText, args: args})
	if err != nil {
		return 0, err
	}
	return resp.n, resp.err
}

// Select executes a read statement and materializes the result set.
func (c *Conn) Select(ctx context.Context, sqlText string, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	args, err := bindAll(params, sqlmux.BindQuery)
	if err != nil {
		return nil, err
	}
	resp, err := c.command(ctx, request{kind: cmdSelect, sql: sqlText, args: args})
	if err != nil {
		return nil, err
	}
	return resp.rs, resp.err
}

// Begin opens a transaction and bumps the per-connection transaction
// counter; the returned executor and its prepared statements carry the
// counter value and every tx-scoped operation verifies it.
func (c *Conn) Begin(ctx context.Context) (sqlmux.TxExecutor, error) {
	resp, err := c.command(ctx, request{kind: cmdBegin})
	if err != nil {
		return nil, err
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return &Tx{conn: c, txID: resp.txID}, nil
}

// Prepare is not offered outside a transaction on the embedded engine.
func (c *Conn) Prepare(ctx context.Context, sqlText string) (sqlmux.PreparedStatement, error) {
	return nil, sqlmux.Unimplemented("sqlite prepared statements are transaction-scoped; use Tx.Prepare")
}

// Ping checks worker and connection liveness.
func (c *Conn) Ping(ctx context.Context) error {
	w, err := c.alive()
	if err != nil {
		return err
	}
	return w.ping(ctx)
}

// Evicted reports whether this handle lost its worker: either released, or
// marked broken by a failed commit, rollback, or drop-rollback.
func (c *Conn) Evicted() bool {
	return c.worker == nil || c.worker.broken.Load()
}

// SetForceRollbackBusyForTests makes the next rollbacks on this connection
// fail with a retryable-busy code. Test hook for the busy-eviction path.
func (c *Conn) SetForceRollbackBusyForTests(force bool) {
	if c.worker != nil {
		c.worker.forceRollbackBusy.Store(force)
	}
}

// Close returns the worker to the pool, or retires it when broken.
func (c *Conn) Close(ctx context.Context) error {
	w := c.worker
	if w == nil {
		return nil
	}
	c.worker = nil
	c.pool.release(w)
	return nil
}

func (c *Conn) alive() (*worker, error) {
	if c.worker == nil {
		return nil, sqlmux.ConnectionError("sqlite connection has been evicted")
	}
	if c.worker.broken.Load() {
		return nil, sqlmux.ConnectionError("sqlite worker is broken")
	}
	return c.worker, nil
}

func (c *Conn) command(ctx context.Context, req request) (response, error) {
	w, err := c.alive()
	if err != nil {
		return response{}, err
	}
	return w.post(ctx, req)
}

func bindAll(params []sqlmux.Value, mode sqlmux.BindMode) ([]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	args := make([]any, len(params))
	for i, p := range params {
		a, err := base.BindSqliteFamily(p, mode)
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	return args, nil
}
