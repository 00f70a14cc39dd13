package base

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlmux/sqlmux"
)

func newMockPool(t *testing.T, dsn string) (*Pool, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.NewWithDSN() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectPing()

	pool, err := NewPool(context.Background(), Config{
		DatabaseType: sqlmux.Mssql,
		DriverName:   "sqlmock",
		DSN:          dsn,
		PoolSize:     2,
		BindValue: func(v sqlmux.Value, mode sqlmux.BindMode) (any, error) {
			return BindSqliteFamily(v, mode)
		},
		ScanValue: ScanSqliteFamily,
		WrapError: func(err error) error { return sqlmux.MssqlError(err) },
	})
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool, mock
}

func acquire(t *testing.T, pool *Pool, mock sqlmock.Sqlmock) sqlmux.Executor {
	t.Helper()
	mock.ExpectPing()
	conn, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	return conn
}

func TestPoolRejectsBadSize(t *testing.T) {
	t.Parallel()

	_, err := NewPool(context.Background(), Config{PoolSize: 0})
	if sqlmux.CategoryOf(err) != sqlmux.CategoryConfig {
		t.Errorf("NewPool(size=0) = %v; want configuration error", err)
	}
}

func TestConnDMLAndSelect(t *testing.T) {
	pool, mock := newMockPool(t, "base_dml_select")
	conn := acquire(t, pool, mock)
	defer func() { _ = conn.Close(context.Background()) }()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(int64(1), "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := conn.DML(context.Background(), "INSERT INTO users (id, name) VALUES (@p1, @p2)",
		[]sqlmux.Value{sqlmux.Int(1), sqlmux.Text("alice")})
	if err != nil {
		t.Fatalf("DML() error: %v", err)
	}
	if n != 1 {
		t.Errorf("DML() = %d; want 1", n)
	}

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "alice"))
	rs, err := conn.Select(context.Background(), "SELECT id, name FROM users", nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if rs.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", rs.Len())
	}
	if v, ok := rs.Row(0).Get("name"); !ok {
		t.Error("name column missing")
	} else if s, _ := v.AsText(); s != "alice" {
		t.Errorf("name = %q; want alice", s)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConnExecuteBatch(t *testing.T) {
	pool, mock := newMockPool(t, "base_batch")
	conn := acquire(t, pool, mock)
	defer func() { _ = conn.Close(context.Background()) }()

	mock.ExpectExec("CREATE TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := conn.ExecuteBatch(context.Background(), "CREATE TABLE a (x INT); CREATE TABLE b (y INT)"); err != nil {
		t.Fatalf("ExecuteBatch() error: %v", err)
	}
}

func TestTxCommitAndRollback(t *testing.T) {
	pool, mock := newMockPool(t, "base_tx")
	conn := acquire(t, pool, mock)
	defer func() { _ = conn.Close(context.Background()) }()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := conn.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if _, err := tx.DML(context.Background(), "INSERT INTO t VALUES (@p1)", []sqlmux.Value{sqlmux.Int(1)}); err != nil {
		t.Fatalf("DML() error: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	// Operations after commit are refused before reaching the driver.
	if _, err := tx.DML(context.Background(), "INSERT INTO t VALUES (@p1)", nil); sqlmux.CategoryOf(err) != sqlmux.CategoryExecution {
		t.Errorf("DML after commit = %v; want execution error", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx2, err := conn.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if err := tx2.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCommitFailureMarksConnectionBroken(t *testing.T) {
	pool, mock := newMockPool(t, "base_commit_fail")
	conn := acquire(t, pool, mock)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("server gone"))

	tx, err := conn.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	err = tx.Commit(context.Background())
	if sqlmux.CategoryOf(err) != sqlmux.CategoryDriver {
		t.Fatalf("Commit() = %v; want driver error", err)
	}
	bc, ok := conn.(*Conn)
	if !ok {
		t.Fatal("expected *base.Conn")
	}
	if !bc.broken {
		t.Error("failed commit must mark the connection broken")
	}
	_ = conn.Close(context.Background())
}

func TestDriverErrorPreservesMessage(t *testing.T) {
	pool, mock := newMockPool(t, "base_driver_err")
	conn := acquire(t, pool, mock)
	defer func() { _ = conn.Close(context.Background()) }()

	mock.ExpectQuery("SELECT a, h FROM test").WillReturnError(errors.New("no such column: h"))
	_, err := conn.Select(context.Background(), "SELECT a, h FROM test", nil)
	if sqlmux.CategoryOf(err) != sqlmux.CategoryDriver {
		t.Fatalf("Select() = %v; want driver error", err)
	}
	if !strings.Contains(err.Error(), "no such column") {
		t.Errorf("driver message not preserved: %q", err.Error())
	}
}

func TestPreparedStatementInTx(t *testing.T) {
	pool, mock := newMockPool(t, "base_prepared")
	conn := acquire(t, pool, mock)
	defer func() { _ = conn.Close(context.Background()) }()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO t")
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := conn.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	stmt, err := tx.Prepare(context.Background(), "INSERT INTO t VALUES (@p1)")
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if _, err := stmt.ExecutePrepared(context.Background(), []sqlmux.Value{sqlmux.Int(1)}); err != nil {
		t.Fatalf("ExecutePrepared() error: %v", err)
	}
	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}

	// The handle dies with its transaction.
	if _, err := stmt.ExecutePrepared(context.Background(), nil); sqlmux.CategoryOf(err) != sqlmux.CategoryExecution {
		t.Errorf("ExecutePrepared after tx end = %v; want execution error", err)
	}
}
