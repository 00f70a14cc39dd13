package turso

import (
	"context"
	"testing"

	"github.com/sqlmux/sqlmux"
)

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := NewConfigAndPool(ctx, Config{URL: "libsql://db-org.turso.io", PoolSize: 1}); sqlmux.CategoryOf(err) != sqlmux.CategoryConfig {
		t.Errorf("missing auth token = %v; want configuration error", err)
	}
	if _, err := NewConfigAndPool(ctx, Config{AuthToken: "tok", PoolSize: 1}); sqlmux.CategoryOf(err) != sqlmux.CategoryConfig {
		t.Errorf("missing URL = %v; want configuration error", err)
	}
}
