package sqlmux

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		category Category
	}{
		{"config", ConfigError("bad descriptor"), CategoryConfig},
		{"connection", ConnectionError("worker dead"), CategoryConnection},
		{"parameter", ParameterError("bad value"), CategoryParameter},
		{"execution", ExecutionError("no such table"), CategoryExecution},
		{"unimplemented", Unimplemented("not offered"), CategoryUnimplemented},
		{"pool", PoolExhausted(Sqlite), CategoryPool},
		{"driver", SqliteError(errors.New("no such column: h")), CategoryDriver},
		{"other", OtherError(errors.New("wrapped")), CategoryOther},
		{"foreign", errors.New("not ours"), CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryOf(tt.err); got != tt.category {
				t.Errorf("CategoryOf() = %v; want %v", got, tt.category)
			}
		})
	}
}

func TestDriverErrorPreservesMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such column: h")
	err := SqliteError(cause)
	if !strings.Contains(err.Error(), "no such column: h") {
		t.Errorf("driver message not preserved verbatim: %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should survive errors.Is")
	}
}

func TestDatabaseOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err error
		db  DatabaseType
		ok  bool
	}{
		{PostgresError(errors.New("x")), Postgres, true},
		{MssqlError(errors.New("x")), Mssql, true},
		{LibsqlError(errors.New("x")), Libsql, true},
		{TursoError(errors.New("x")), Turso, true},
		{PoolError(Sqlite, errors.New("x")), Sqlite, true},
		{ExecutionError("x"), 0, false},
		{errors.New("foreign"), 0, false},
	}
	for _, tt := range tests {
		db, ok := DatabaseOf(tt.err)
		if ok != tt.ok || (ok && db != tt.db) {
			t.Errorf("DatabaseOf(%v) = %v, %v; want %v, %v", tt.err, db, ok, tt.db, tt.ok)
		}
	}
}

func TestPoolExhaustedIsMatchable(t *testing.T) {
	t.Parallel()

	err := PoolExhausted(Postgres)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Error("PoolExhausted should wrap ErrPoolExhausted")
	}
	if wrapped := fmt.Errorf("checkout: %w", err); CategoryOf(wrapped) != CategoryPool {
		t.Error("category should survive further wrapping")
	}
}

func TestParseDatabaseType(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]DatabaseType{
		"postgres": Postgres, "postgresql": Postgres,
		"sqlite": Sqlite, "sqlite3": Sqlite,
		"mssql": Mssql, "sqlserver": Mssql,
		"libsql": Libsql, "turso": Turso,
	} {
		got, err := ParseDatabaseType(name)
		if err != nil || got != want {
			t.Errorf("ParseDatabaseType(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseDatabaseType("oracle"); CategoryOf(err) != CategoryConfig {
		t.Errorf("unknown backend should be a configuration error, got %v", err)
	}
}
