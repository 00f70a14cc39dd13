package sqlmux

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".sqlmux.yaml")
	content := `development:
  backend: sqlite
  path: dev.db
  pool_size: 4
production:
  backend: postgres
  host: db.internal
  port: 5432
  user: app
  password: hunter2
  database: app
  pool_size: 16
  connect_timeout: 5s
  translate_placeholders: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	dev, err := fc.Env("development")
	if err != nil {
		t.Fatalf("Env(development) error: %v", err)
	}
	if db, _ := dev.DatabaseType(); db != Sqlite {
		t.Errorf("development backend = %v; want sqlite", db)
	}
	if dev.Path != "dev.db" || dev.PoolSize != 4 {
		t.Errorf("development = %+v", dev)
	}

	prod, err := fc.Env("production")
	if err != nil {
		t.Fatalf("Env(production) error: %v", err)
	}
	if db, _ := prod.DatabaseType(); db != Postgres {
		t.Errorf("production backend = %v; want postgres", db)
	}
	if !prod.TranslatePlaceholders || prod.Host != "db.internal" || prod.Port != 5432 {
		t.Errorf("production = %+v", prod)
	}
	if prod.ConnectTimeout.Std() != 5*time.Second {
		t.Errorf("connect_timeout = %v; want 5s", prod.ConnectTimeout.Std())
	}

	if _, err := fc.Env("staging"); CategoryOf(err) != CategoryConfig {
		t.Errorf("missing environment should be a configuration error, got %v", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); CategoryOf(err) != CategoryConfig {
		t.Errorf("missing file should be a configuration error, got %v", err)
	}
}
