package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/sqlmux/sqlmux"
	"github.com/sqlmux/sqlmux/drivers/base"
)

type cmdKind int

const (
	cmdPing cmdKind = iota
	cmdExecBatch
	cmdDML
	cmdSelect
	cmdBegin
	cmdTxExecBatch
	cmdTxDML
	cmdTxSelect
	cmdCommit
	cmdRollback
	cmdPrepare
	cmdExecPrepared
	cmdQueryPrepared
	cmdCloseStmt
	cmdInteract
	cmdShutdown
)

// request is one command posted to a worker. Every request carries its own
// one-shot reply channel; the buffer lets the worker answer even when the
// requester has already gone away.
type request struct {
	kind   cmdKind
	sql    string
	args   []any
	txID   uint64
	stmtID uint64
	fn     func(*sql.Conn) error
	reply  chan response
}

type response struct {
	err    error
	n      int64
	rs     *sqlmux.ResultSet
	txID   uint64
	stmtID uint64
}

type stmtEntry struct {
	stmt *sql.Stmt
	txID uint64
}

// worker owns one driver connection. The atomic flags may be read and set from
// any goroutine; the fields from tx on are touched only by the worker
// goroutine, and the facade reaches them only through req.
type worker struct {
	id   uuid.UUID
	db   *sql.DB
	conn *sql.Conn
	req  chan request

	broken            atomic.Bool
	stopped           atomic.Bool
	forceRollbackBusy atomic.Bool

	tx      *sql.Tx
	txSeq   uint64
	stmts   map[uint64]stmtEntry
	stmtSeq uint64
}

// startWorker opens a dedicated database handle, pins its single connection,
// runs the WAL and busy-timeout pragmas, and starts the command loop.
func startWorker(ctx context.Context, dsn string, busyTimeout time.Duration) (*worker, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, sqlmux.ConfigError("cannot open sqlite database: %v", err)
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, sqlmux.ConnectionError("cannot open sqlite connection: %v", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeout.Milliseconds()),
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			_ = db.Close()
			return nil, sqlmux.SqliteError(err)
		}
	}
	w := &worker{
		id:    uuid.New(),
		db:    db,
		conn:  conn,
		req:   make(chan request),
		stmts: make(map[uint64]stmtEntry),
	}
	go w.run()
	return w, nil
}

func (w *worker) run() {
	for req := range w.req {
		resp := w.handle(req)
		req.reply <- resp
		if req.kind == cmdShutdown {
			return
		}
	}
}

// post sends a command and suspends on the reply. Cancellation collapses
// cleanly: the buffered reply channel lets the worker finish and move on even
// when the requester is gone.
func (w *worker) post(ctx context.Context, req request) (response, error) {
	if w.stopped.Load() {
		return response{}, sqlmux.ConnectionError("sqlite worker is shut down")
	}
	req.reply = make(chan response, 1)
	select {
	case w.req <- req:
	case <-ctx.Done():
		return response{}, sqlmux.ConnectionError("sqlite command dispatch cancelled: %v", ctx.Err())
	}
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return response{}, sqlmux.ConnectionError("sqlite command cancelled: %v", ctx.Err())
	}
}

func (w *worker) ping(ctx context.Context) error {
	resp, err := w.post(ctx, request{kind: cmdPing})
	if err != nil {
		return err
	}
	return resp.err
}

// shutdown stops the worker loop and closes the driver connection. Only the
// worker's current owner may call it; calling twice is harmless.
func (w *worker) shutdown() {
	if w.stopped.Swap(true) {
		return
	}
	w.broken.Store(true)
	reply := make(chan response, 1)
	w.req <- request{kind: cmdShutdown, reply: reply}
	<-reply
}

func (w *worker) handle(req request) response {
	bg := context.Background()
	switch req.kind {
	case cmdPing:
		// An open transaction already proves the connection is live, and the
		// driver connection is owned by the transaction until it ends.
		if w.tx != nil {
			return response{}
		}
		return response{err: wrapSqlite(w.conn.PingContext(bg))}

	case cmdExecBatch:
		if w.tx != nil {
			return response{err: txInProgressError()}
		}
		_, err := w.conn.ExecContext(bg, req.sql)
		return response{err: wrapSqlite(err)}

	case cmdDML:
		if w.tx != nil {
			return response{err: txInProgressError()}
		}
		return execResult(w.conn.ExecContext(bg, req.sql, req.args...))

	case cmdSelect:
		if w.tx != nil {
			return response{err: txInProgressError()}
		}
		return queryResult(w.conn.QueryContext(bg, req.sql, req.args...))

	case cmdBegin:
		if w.tx != nil {
			return response{err: txInProgressError()}
		}
		tx, err := w.conn.BeginTx(bg, nil)
		if err != nil {
			return response{err: wrapSqlite(err)}
		}
		w.txSeq++
		w.tx = tx
		return response{txID: w.txSeq}

	case cmdTxExecBatch:
		if err := w.guardTx(req.txID); err != nil {
			return response{err: err}
		}
		_, err := w.tx.ExecContext(bg, req.sql)
		return response{err: wrapSqlite(err)}

	case cmdTxDML:
		if err := w.guardTx(req.txID); err != nil {
			return response{err: err}
		}
		return execResult(w.tx.ExecContext(bg, req.sql, req.args...))

	case cmdTxSelect:
		if err := w.guardTx(req.txID); err != nil {
			return response{err: err}
		}
		return queryResult(w.tx.QueryContext(bg, req.sql, req.args...))

	case cmdCommit:
		if err := w.guardTx(req.txID); err != nil {
			return response{err: err}
		}
		err := w.tx.Commit()
		w.endTx()
		if err != nil {
			w.broken.Store(true)
			return response{err: wrapSqlite(err)}
		}
		return response{}

	case cmdRollback:
		if err := w.guardTx(req.txID); err != nil {
			return response{err: err}
		}
		var err error
		if w.forceRollbackBusy.Load() {
			_ = w.tx.Rollback()
			err = sqlite3.Error{Code: sqlite3.ErrBusy}
		} else {
			err = w.tx.Rollback()
		}
		w.endTx()
		if err != nil {
			// Default policy is eviction; the legacy rewrap flag exists only
			// to regression-test the eviction path.
			if !rewrapOnRollbackFailure.Load() {
				w.broken.Store(true)
			}
			return response{err: wrapSqlite(err)}
		}
		return response{}

	case cmdPrepare:
		if err := w.guardTx(req.txID); err != nil {
			return response{err: err}
		}
		stmt, err := w.tx.PrepareContext(bg, req.sql)
		if err != nil {
			return response{err: wrapSqlite(err)}
		}
		w.stmtSeq++
		w.stmts[w.stmtSeq] = stmtEntry{stmt: stmt, txID: w.txSeq}
		return response{stmtID: w.stmtSeq}

	case cmdExecPrepared:
		entry, err := w.guardStmt(req.stmtID)
		if err != nil {
			return response{err: err}
		}
		return execResult(entry.stmt.ExecContext(bg, req.args...))

	case cmdQueryPrepared:
		entry, err := w.guardStmt(req.stmtID)
		if err != nil {
			return response{err: err}
		}
		return queryResult(entry.stmt.QueryContext(bg, req.args...))

	case cmdCloseStmt:
		if entry, ok := w.stmts[req.stmtID]; ok {
			_ = entry.stmt.Close()
			delete(w.stmts, req.stmtID)
		}
		return response{}

	case cmdInteract:
		return response{err: req.fn(w.conn)}

	case cmdShutdown:
		if w.tx != nil {
			_ = w.tx.Rollback()
			w.endTx()
		}
		_ = w.conn.Close()
		_ = w.db.Close()
		return response{}

	default:
		return response{err: sqlmux.Unimplemented("unknown sqlite worker command %d", req.kind)}
	}
}

// guardTx verifies that the transaction the request belongs to is still the
// one open on this connection.
func (w *worker) guardTx(txID uint64) error {
	if w.tx == nil || txID != w.txSeq {
		return sqlmux.ExecutionError("SQLite transaction mismatch")
	}
	return nil
}

func (w *worker) guardStmt(stmtID uint64) (stmtEntry, error) {
	entry, ok := w.stmts[stmtID]
	if !ok || w.tx == nil || entry.txID != w.txSeq {
		return stmtEntry{}, sqlmux.ExecutionError("SQLite transaction mismatch")
	}
	return entry, nil
}

// endTx clears the open transaction and closes the statements that were
// scoped to it.
func (w *worker) endTx() {
	w.tx = nil
	for id, entry := range w.stmts {
		_ = entry.stmt.Close()
		delete(w.stmts, id)
	}
}

func txInProgressError() error {
	return sqlmux.ExecutionError("SQLite transaction in progress; operation not permitted")
}

func wrapSqlite(err error) error {
	if err == nil {
		return nil
	}
	return sqlmux.SqliteError(err)
}

func execResult(res sql.Result, err error) response {
	if err != nil {
		return response{err: wrapSqlite(err)}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return response{err: wrapSqlite(err)}
	}
	return response{n: n}
}

func queryResult(rows *sql.Rows, err error) response {
	if err != nil {
		return response{err: wrapSqlite(err)}
	}
	rs, err := base.CollectRows(rows, base.ScanSqliteFamily)
	if err != nil {
		return response{err: wrapSqlite(err)}
	}
	return response{rs: rs}
}
