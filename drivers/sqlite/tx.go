package sqlite

import (
	"context"
	"sync/atomic"

	"github.com/sqlmux/sqlmux"
)

// Process-wide test hooks. Both default to false and exist only for
// negative-path testing; see their setters.
var (
	skipDropRollback        atomic.Bool
	rewrapOnRollbackFailure atomic.Bool
)

// SetSkipDropRollbackForTests disables the rollback an abandoned transaction
// normally performs. It reproduces the "bad drop" bug and has no other
// documented use. The default is false.
func SetSkipDropRollbackForTests(skip bool) { skipDropRollback.Store(skip) }

// SetRewrapOnRollbackFailureForTests restores the legacy behavior of
// returning a connection to the pool even though its rollback failed. It
// exists only to regression-test the eviction path. The default is false.
func SetRewrapOnRollbackFailureForTests(rewrap bool) { rewrapOnRollbackFailure.Store(rewrap) }

// Tx is an open transaction on a worker-owned connection. It records the
// connection's transaction counter at Begin; the worker refuses tx-scoped
// commands whose counter no longer matches.
type Tx struct {
	conn *Conn
	txID uint64
}

// ExecuteBatch runs statements inside the open transaction.
func (t *Tx) ExecuteBatch(ctx context.Context, sqlText string) error {
	resp, err := t.conn.command(ctx, request{kind: cmdTxExecBatch, sql: sqlText, txID: t.txID})
	if err != nil {
		return err
	}
	return resp.err
}

// DML executes a write statement inside the open transaction.
func (t *Tx) DML(ctx context.Context, sqlText string, params []sqlmux.Value) (int64, error) {
	args, err := bindAll(params, sqlmux.BindExecute)
	if err != nil {
		return 0, err
	}
	resp, err := t.conn.command(ctx, request{kind: cmdTxDML, sql: sqlText, args: args, txID: t.txID})
	if err != nil {
		return 0, err
	}
	return resp.n, resp.err
}

// Select executes a read statement inside the open transaction.
func (t *Tx) Select(ctx context.Context, sqlText string, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	args, err := bindAll(params, sqlmux.BindQuery)
	if err != nil {
		return nil, err
	}
	resp, err := t.conn.command(ctx, request{kind: cmdTxSelect, sql: sqlText, args: args, txID: t.txID})
	if err != nil {
		return nil, err
	}
	return resp.rs, resp.err
}

// Prepare prepares a statement scoped to this transaction. The handle dies
// with the transaction and records the transaction counter.
func (t *Tx) Prepare(ctx context.Context, sqlText string) (sqlmux.PreparedStatement, error) {
	sqlText = sqlmux.TranslatePlaceholders(sqlText, sqlmux.StyleQuestion, t.conn.TranslateByDefault())
	resp, err := t.conn.command(ctx, request{kind: cmdPrepare, sql: sqlText, txID: t.txID})
	if err != nil {
		return nil, err
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return &Stmt{conn: t.conn, stmtID: resp.stmtID}, nil
}

// Commit commits the transaction. A failing commit marks the worker broken
// so it is evicted on release.
func (t *Tx) Commit(ctx context.Context) error {
	resp, err := t.conn.command(ctx, request{kind: cmdCommit, txID: t.txID})
	if err != nil {
		return err
	}
	return resp.err
}

// Rollback rolls the transaction back. On failure the worker is marked
// broken unless the legacy rewrap hook is set.
func (t *Tx) Rollback(ctx context.Context) error {
	resp, err := t.conn.command(ctx, request{kind: cmdRollback, txID: t.txID})
	if err != nil {
		return err
	}
	return resp.err
}

// RollbackAbandoned is the embedded engine's drop protocol: the abandoned
// transaction hands an owned rollback command to the connection's worker and
// waits for the acknowledgement. When no acknowledgement can be obtained the
// worker is marked broken so the pool evicts it on return.
func (t *Tx) RollbackAbandoned(ctx context.Context) error {
	if skipDropRollback.Load() {
		return nil
	}
	w := t.conn.worker
	if w == nil {
		return sqlmux.ConnectionError("sqlite connection has been evicted")
	}
	resp, err := w.post(ctx, request{kind: cmdRollback, txID: t.txID})
	if err != nil {
		w.broken.Store(true)
		return err
	}
	return resp.err
}

// Stmt is a transaction-scoped prepared statement handle.
type Stmt struct {
	conn   *Conn
	stmtID uint64
	closed bool
}

// ExecutePrepared runs the statement as DML inside its transaction.
func (s *Stmt) ExecutePrepared(ctx context.Context, params []sqlmux.Value) (int64, error) {
	if s.closed {
		return 0, sqlmux.ExecutionError("prepared statement is closed")
	}
	args, err := bindAll(params, sqlmux.BindExecute)
	if err != nil {
		return 0, err
	}
	resp, err := s.conn.command(ctx, request{kind: cmdExecPrepared, stmtID: s.stmtID, args: args})
	if err != nil {
		return 0, err
	}
	return resp.n, resp.err
}

// QueryPrepared runs the statement as a SELECT inside its transaction.
func (s *Stmt) QueryPrepared(ctx context.Context, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	if s.closed {
		return nil, sqlmux.ExecutionError("prepared statement is closed")
	}
	args, err := bindAll(params, sqlmux.BindQuery)
	if err != nil {
		return nil, err
	}
	resp, err := s.conn.command(ctx, request{kind: cmdQueryPrepared, stmtID: s.stmtID, args: args})
	if err != nil {
		return nil, err
	}
	return resp.rs, resp.err
}

// Close releases the statement early; statements also close implicitly when
// their transaction ends.
func (s *Stmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn.worker == nil {
		return nil
	}
	resp, err := s.conn.worker.post(context.Background(), request{kind: cmdCloseStmt, stmtID: s.stmtID})
	if err != nil {
		return err
	}
	return resp.err
}
