package postgres

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sqlmux/sqlmux"
)

func TestBindValue(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 9, 11, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		value    sqlmux.Value
		expected any
	}{
		{"null", sqlmux.Null(), nil},
		{"int", sqlmux.Int(42), int64(42)},
		{"float", sqlmux.Float(2.5), 2.5},
		{"text", sqlmux.Text("alice"), "alice"},
		{"bool", sqlmux.Bool(true), true},
		{"timestamp is naive", sqlmux.Timestamp(ts), pgtype.Timestamp{Time: ts, Valid: true}},
		{"json as text", sqlmux.JSON([]byte(`{"a":1}`)), `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bindValue(tt.value)
			if err != nil {
				t.Fatalf("bindValue() error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("bindValue(%v) = %#v; want %#v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestScanValue(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 9, 11, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		oid  uint32
		cell any
		kind sqlmux.ValueKind
	}{
		{"nil", pgtype.TextOID, nil, sqlmux.KindNull},
		{"int8", pgtype.Int8OID, int64(1), sqlmux.KindInt},
		{"int4", pgtype.Int4OID, int32(1), sqlmux.KindInt},
		{"float8", pgtype.Float8OID, 1.5, sqlmux.KindFloat},
		{"bool", pgtype.BoolOID, true, sqlmux.KindBool},
		{"text", pgtype.TextOID, "x", sqlmux.KindText},
		{"timestamp", pgtype.TimestampOID, ts, sqlmux.KindTimestamp},
		{"bytea", pgtype.ByteaOID, []byte{1}, sqlmux.KindBlob},
		{"jsonb text stays json", pgtype.JSONBOID, `{"a":1}`, sqlmux.KindJSON},
		{"jsonb decoded container re-encodes", pgtype.JSONBOID, map[string]any{"a": float64(1)}, sqlmux.KindJSON},
	}
	for _, tt := range tests {
		if got := scanValue(tt.oid, tt.cell).Kind(); got != tt.kind {
			t.Errorf("scanValue(%s) kind = %v; want %v", tt.name, got, tt.kind)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := NewConfigAndPool(ctx, Config{DBName: "app", PoolSize: 1}); sqlmux.CategoryOf(err) != sqlmux.CategoryConfig {
		t.Errorf("missing host = %v; want configuration error", err)
	}
	if _, err := NewConfigAndPool(ctx, Config{Host: "localhost", DBName: "app"}); sqlmux.CategoryOf(err) != sqlmux.CategoryConfig {
		t.Errorf("zero pool size = %v; want configuration error", err)
	}
}

// testConfig reads the live-server settings from the environment; tests that
// need a server skip when SQLMUX_TEST_PG_HOST is unset.
func testConfig(t *testing.T) Config {
	t.Helper()
	host := os.Getenv("SQLMUX_TEST_PG_HOST")
	if host == "" {
		t.Skip("SQLMUX_TEST_PG_HOST not set; skipping live postgres test")
	}
	port := 5432
	if p := os.Getenv("SQLMUX_TEST_PG_PORT"); p != "" {
		port, _ = strconv.Atoi(p)
	}
	return Config{
		Host:     host,
		Port:     port,
		User:     envOr("SQLMUX_TEST_PG_USER", "postgres"),
		Password: os.Getenv("SQLMUX_TEST_PG_PASSWORD"),
		DBName:   envOr("SQLMUX_TEST_PG_DBNAME", "postgres"),
		PoolSize: 4,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestLiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	cap, err := NewConfigAndPool(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("NewConfigAndPool() error: %v", err)
	}
	defer func() { _ = cap.Close() }()

	conn, err := cap.GetConnection(ctx)
	if err != nil {
		t.Fatalf("GetConnection() error: %v", err)
	}
	defer conn.Release()

	err = conn.ExecuteBatch(ctx, `
		DROP TABLE IF EXISTS sqlmux_rt;
		CREATE TABLE sqlmux_rt (id BIGINT PRIMARY KEY, name TEXT, ok BOOLEAN, doc JSONB);
	`)
	if err != nil {
		t.Fatalf("ExecuteBatch() error: %v", err)
	}
	defer func() { _ = conn.ExecuteBatch(ctx, "DROP TABLE sqlmux_rt") }()

	n, err := conn.DML(ctx, "INSERT INTO sqlmux_rt (id, name, ok, doc) VALUES ($1, $2, $3, $4)",
		sqlmux.Int(1), sqlmux.Text("alice"), sqlmux.Bool(true), sqlmux.JSON([]byte(`{"k":1}`)))
	if err != nil {
		t.Fatalf("DML() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("DML() = %d; want 1", n)
	}

	rs, err := conn.Select(ctx, "SELECT id, name, ok, doc FROM sqlmux_rt WHERE id = $1", sqlmux.Int(1))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if rs.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", rs.Len())
	}
	row := rs.Row(0)
	if v, _ := row.Get("name"); !textEquals(v, "alice") {
		t.Errorf("name = %v", v)
	}
	if v, _ := row.Get("doc"); v.Kind() != sqlmux.KindJSON {
		t.Errorf("doc kind = %v; want JSON", v.Kind())
	}
}

func TestLiveTxDropRollsBack(t *testing.T) {
	ctx := context.Background()
	cap, err := NewConfigAndPool(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("NewConfigAndPool() error: %v", err)
	}
	defer func() { _ = cap.Close() }()

	conn, err := cap.GetConnection(ctx)
	if err != nil {
		t.Fatalf("GetConnection() error: %v", err)
	}
	err = conn.ExecuteBatch(ctx, `
		DROP TABLE IF EXISTS sqlmux_drop;
		CREATE TABLE sqlmux_drop (id INT PRIMARY KEY);
	`)
	if err != nil {
		t.Fatalf("ExecuteBatch() error: %v", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if _, err := tx.DML(ctx, "INSERT INTO sqlmux_drop (id) VALUES ($1)", sqlmux.Int(1)); err != nil {
		t.Fatalf("DML() error: %v", err)
	}
	conn.Release()

	conn2, err := cap.GetConnection(ctx)
	if err != nil {
		t.Fatalf("GetConnection() error: %v", err)
	}
	defer conn2.Release()
	defer func() { _ = conn2.ExecuteBatch(ctx, "DROP TABLE sqlmux_drop") }()

	rs, err := conn2.Select(ctx, "SELECT COUNT(*) AS n FROM sqlmux_drop")
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if v, _ := rs.Row(0).Get("n"); !intEquals(v, 0) {
		t.Errorf("count after abandoned tx = %v; want 0", v)
	}
}

func TestLiveTranslationQuestionToDollar(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.TranslatePlaceholders = true
	cap, err := NewConfigAndPool(ctx, cfg)
	if err != nil {
		t.Fatalf("NewConfigAndPool() error: %v", err)
	}
	defer func() { _ = cap.Close() }()

	conn, err := cap.GetConnection(ctx)
	if err != nil {
		t.Fatalf("GetConnection() error: %v", err)
	}
	defer conn.Release()

	// SQLite-style SQL against postgres, translated by the pool default.
	rs, err := conn.Select(ctx, "SELECT ?1::int AS a, '?2' AS b", sqlmux.Int(7))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if v, _ := rs.Row(0).Get("a"); !intEquals(v, 7) {
		t.Errorf("a = %v; want 7", v)
	}
	if v, _ := rs.Row(0).Get("b"); !textEquals(v, "?2") {
		t.Errorf("literal ?2 must survive translation, got %v", v)
	}
}

func textEquals(v sqlmux.Value, want string) bool {
	s, ok := v.AsText()
	return ok && strings.EqualFold(s, want)
}

func intEquals(v sqlmux.Value, want int64) bool {
	n, ok := v.AsInt()
	return ok && n == want
}
