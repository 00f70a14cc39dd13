package mssql

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sqlmux/sqlmux"
)

func TestBuildDSN(t *testing.T) {
	t.Parallel()

	dsn := buildDSN(Config{
		Host:     "db.internal",
		Port:     1433,
		User:     "sa",
		Password: "p@ss:word",
		Database: "app",
	})
	if !strings.HasPrefix(dsn, "sqlserver://") {
		t.Errorf("dsn = %q", dsn)
	}
	if !strings.Contains(dsn, "database=app") {
		t.Errorf("dsn missing database: %q", dsn)
	}
	// Credentials with reserved characters must be escaped, not mangled.
	if strings.Contains(dsn, "p@ss:word@") {
		t.Errorf("password not escaped: %q", dsn)
	}
}

func TestBindValue(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 9, 11, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		value    sqlmux.Value
		expected any
	}{
		{"null", sqlmux.Null(), nil},
		{"int", sqlmux.Int(1), int64(1)},
		{"bool stays bool", sqlmux.Bool(true), true},
		{"timestamp stays time", sqlmux.Timestamp(ts), ts},
		{"json as text", sqlmux.JSON([]byte(`{}`)), "{}"},
	}
	for _, tt := range tests {
		got, err := bindValue(tt.value, sqlmux.BindExecute)
		if err != nil {
			t.Fatalf("bindValue(%s) error: %v", tt.name, err)
		}
		if got != tt.expected {
			t.Errorf("bindValue(%s) = %#v; want %#v", tt.name, got, tt.expected)
		}
	}
}

func TestScanValue(t *testing.T) {
	t.Parallel()

	if got := scanValue(time.Now()).Kind(); got != sqlmux.KindTimestamp {
		t.Errorf("time scans as %v; want timestamp", got)
	}
	if got := scanValue(nil).Kind(); got != sqlmux.KindNull {
		t.Errorf("nil scans as %v; want null", got)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := NewConfigAndPool(ctx, Config{Database: "app", PoolSize: 1}); sqlmux.CategoryOf(err) != sqlmux.CategoryConfig {
		t.Errorf("missing host = %v; want configuration error", err)
	}
}
