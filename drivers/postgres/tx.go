package postgres

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5"

	"github.com/sqlmux/sqlmux"
)

var skipDropRollback atomic.Bool

// SetSkipDropRollbackForTests disables the rollback an abandoned transaction
// normally performs, to reproduce the "bad drop" bug in tests. Default false.
func SetSkipDropRollbackForTests(skip bool) { skipDropRollback.Store(skip) }

// Tx is an open pgx transaction. It implements sqlmux.TxExecutor.
type Tx struct {
	conn *Conn
	tx   pgx.Tx
}

// ExecuteBatch runs statements inside the transaction over the simple
// protocol.
func (t *Tx) ExecuteBatch(ctx context.Context, sql string) error {
	if _, err := t.tx.Exec(ctx, sql, pgx.QueryExecModeSimpleProtocol); err != nil {
		return wrapPg(err)
	}
	return nil
}

// DML executes a write statement inside the transaction.
func (t *Tx) DML(ctx context.Context, sql string, params []sqlmux.Value) (int64, error) {
	args, err := bindAll(params, sqlmux.BindExecute)
	if err != nil {
		return 0, err
	}
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, wrapPg(err)
	}
	return tag.RowsAffected(), nil
}

// Select executes a read statement inside the transaction.
func (t *Tx) Select(ctx context.Context, sql string, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	args, err := bindAll(params, sqlmux.BindQuery)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapPg(err)
	}
	return collectRows(rows)
}

// Prepare prepares a statement scoped to this transaction.
func (t *Tx) Prepare(ctx context.Context, sql string) (sqlmux.PreparedStatement, error) {
	sql = sqlmux.TranslatePlaceholders(sql, sqlmux.StyleDollar, t.conn.TranslateByDefault())
	sd, err := t.tx.Prepare(ctx, sql, sql)
	if err != nil {
		return nil, wrapPg(err)
	}
	return &Stmt{conn: t.conn, tx: t, name: sd.Name}, nil
}

// Commit commits the transaction. A failing commit marks the connection
// broken so it is destroyed instead of repooled.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		t.conn.broken = true
		return wrapPg(err)
	}
	return nil
}

// Rollback rolls the transaction back. A failing rollback marks the
// connection broken.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil {
		t.conn.broken = true
		return wrapPg(err)
	}
	return nil
}

// RollbackAbandoned is the async-driver drop protocol: the rollback runs on
// the caller's goroutine against the live driver connection; failure marks
// the connection broken so the pool destroys it on release.
func (t *Tx) RollbackAbandoned(ctx context.Context) error {
	if skipDropRollback.Load() {
		return nil
	}
	return t.Rollback(ctx)
}

// Stmt is a prepared statement bound to a connection, and to a transaction
// when produced by Tx.Prepare.
type Stmt struct {
	conn   *Conn
	tx     *Tx
	name   string
	closed bool
}

// ExecutePrepared runs the statement as DML.
func (s *Stmt) ExecutePrepared(ctx context.Context, params []sqlmux.Value) (int64, error) {
	if s.closed {
		return 0, sqlmux.ExecutionError("prepared statement is closed")
	}
	args, err := bindAll(params, sqlmux.BindExecute)
	if err != nil {
		return 0, err
	}
	tag, err := s.exec(ctx, args)
	if err != nil {
		return 0, err
	}
	return tag, nil
}

// QueryPrepared runs the statement as a SELECT.
func (s *Stmt) QueryPrepared(ctx context.Context, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	if s.closed {
		return nil, sqlmux.ExecutionError("prepared statement is closed")
	}
	args, err := bindAll(params, sqlmux.BindQuery)
	if err != nil {
		return nil, err
	}
	var rows pgx.Rows
	if s.tx != nil {
		rows, err = s.tx.tx.Query(ctx, s.name, args...)
	} else {
		rows, err = s.conn.conn.Query(ctx, s.name, args...)
	}
	if err != nil {
		return nil, wrapPg(err)
	}
	return collectRows(rows)
}

// Close marks the handle closed. It does not deallocate the server-side
// statement, which stays prepared on the connection.
func (s *Stmt) Close() error {
	s.closed = true
	return nil
}

func (s *Stmt) exec(ctx context.Context, args []any) (int64, error) {
	if s.tx != nil {
		tag, err := s.tx.tx.Exec(ctx, s.name, args...)
		if err != nil {
			return 0, wrapPg(err)
		}
		return tag.RowsAffected(), nil
	}
	tag, err := s.conn.conn.Exec(ctx, s.name, args...)
	if err != nil {
		return 0, wrapPg(err)
	}
	return tag.RowsAffected(), nil
}

func wrapPg(err error) error {
	if err == nil {
		return nil
	}
	return sqlmux.PostgresError(err)
}
