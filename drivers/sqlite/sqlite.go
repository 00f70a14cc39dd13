// Package sqlite provides the embedded SQLite backend.
//
// # Worker Model
//
// The SQLite driver connection is not safe to share across tasks, so every
// pooled connection is owned by a dedicated worker goroutine. The worker is
// the only code that touches its pinned driver connection; the facade posts
// commands over a channel and suspends on a per-command reply channel.
// Checkout hands the caller exclusive ownership of one worker, which makes
// all operations on one connection handle totally ordered.
//
//	cap, err := sqlite.NewConfigAndPool(ctx, sqlite.Config{Path: "app.db", PoolSize: 4})
//
// # Database File
//
//   - Persistent: "app.db" or "/path/to/app.db"
//   - In-memory, private to each pooled connection: ":memory:"
//   - In-memory, shared across the pool: "file::memory:?cache=shared"
//
// # WAL and Busy Handling
//
// Every fresh connection runs PRAGMA journal_mode=WAL and a bounded
// busy_timeout as part of the connection contract. A retryable-busy error
// that outlives the busy timeout surfaces to the caller; when it happens on
// rollback the worker is evicted from the pool so the next checkout builds a
// fresh one.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sqlmux/sqlmux"
)

// DefaultBusyTimeout bounds SQLite's internal busy retry when the config does
// not set one.
const DefaultBusyTimeout = 5 * time.Second

// DefaultAcquireTimeout bounds pool checkout when the config does not set one.
const DefaultAcquireTimeout = 30 * time.Second

// Config describes an embedded SQLite database and its worker pool.
type Config struct {
	// Path is a filesystem path, ":memory:", or a file: URI. A shared-cache
	// URI is required for an in-memory database visible to every worker.
	Path string

	// PoolSize is the number of dedicated workers. Must be at least 1.
	PoolSize int

	// BusyTimeout bounds SQLite's internal retry on a locked database.
	BusyTimeout time.Duration

	// AcquireTimeout bounds checkout when every worker is handed out.
	AcquireTimeout time.Duration

	// TranslatePlaceholders is the pool-level translation default.
	TranslatePlaceholders bool

	// Logger receives worker lifecycle events. Defaults to no-op.
	Logger sqlmux.Logger
}

// NewConfigAndPool builds the worker pool, initializes every worker's
// connection (WAL journal mode, busy timeout), and wraps it in the erased
// facade.
func NewConfigAndPool(ctx context.Context, cfg Config, opts ...sqlmux.Option) (*sqlmux.ConfigAndPool, error) {
	p, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sqlmux.NewPool(p, opts...), nil
}

type pool struct {
	cfg  Config
	dsn  string
	free chan *worker

	mu     sync.Mutex
	total  int
	closed bool
}

func newPool(ctx context.Context, cfg Config) (*pool, error) {
	if cfg.Path == "" {
		return nil, sqlmux.ConfigError("sqlite path must not be empty")
	}
	if cfg.PoolSize < 1 {
		return nil, sqlmux.ConfigError("pool size must be at least 1, got %d", cfg.PoolSize)
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = DefaultBusyTimeout
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = sqlmux.NopLogger()
	}
	p := &pool{
		cfg:  cfg,
		dsn:  buildDSN(cfg),
		free: make(chan *worker, cfg.PoolSize),
	}
	for i := 0; i < cfg.PoolSize; i++ {
		w, err := p.spawn(ctx)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.total++
		p.free <- w
	}
	return p, nil
}

// buildDSN appends the busy timeout to the descriptor. WAL is set with a
// pragma after connecting so it also applies to plain paths.
func buildDSN(cfg Config) string {
	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d", cfg.Path, sep, cfg.BusyTimeout.Milliseconds())
}

func (p *pool) DatabaseType() sqlmux.DatabaseType { return sqlmux.Sqlite }

func (p *pool) TranslateByDefault() bool { return p.cfg.TranslatePlaceholders }

// Acquire hands out an owned worker. Broken workers found in the free list
// are retired and replaced; a failing liveness ping evicts.
func (p *pool) Acquire(ctx context.Context) (sqlmux.Executor, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	for {
		select {
		case w := <-p.free:
			if c, ok := p.checkout(ctx, w); ok {
				return c, nil
			}
			continue
		default:
		}

		if p.reserve() {
			w, err := p.spawn(ctx)
			if err != nil {
				p.unreserve()
				return nil, err
			}
			return &Conn{pool: p, worker: w}, nil
		}

		select {
		case w := <-p.free:
			if c, ok := p.checkout(ctx, w); ok {
				return c, nil
			}
		case <-ctx.Done():
			return nil, sqlmux.PoolExhausted(sqlmux.Sqlite)
		}
	}
}

// checkout validates a worker taken from the free list.
func (p *pool) checkout(ctx context.Context, w *worker) (*Conn, bool) {
	if w.broken.Load() {
		p.retire(ctx, w)
		return nil, false
	}
	if err := w.ping(ctx); err != nil {
		p.cfg.Logger.WarnContext(ctx, "sqlite liveness ping failed, evicting worker",
			"worker", w.id.String(), "error", err)
		p.retire(ctx, w)
		return nil, false
	}
	return &Conn{pool: p, worker: w}, true
}

// reserve claims a pool slot for a new worker.
func (p *pool) reserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.total >= p.cfg.PoolSize {
		return false
	}
	p.total++
	return true
}

func (p *pool) unreserve() {
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
}

// spawn builds a worker with a freshly initialized connection. The caller
// must hold a reserved slot, except during construction.
func (p *pool) spawn(ctx context.Context) (*worker, error) {
	w, err := startWorker(ctx, p.dsn, p.cfg.BusyTimeout)
	if err != nil {
		return nil, err
	}
	p.cfg.Logger.DebugContext(ctx, "sqlite worker started", "worker", w.id.String())
	return w, nil
}

// retire shuts a worker down and frees its pool slot; the next checkout
// builds a replacement.
func (p *pool) retire(ctx context.Context, w *worker) {
	w.shutdown()
	p.unreserve()
	p.cfg.Logger.DebugContext(ctx, "sqlite worker retired", "worker", w.id.String())
}

// release returns a worker to the free list, or retires it when broken.
func (p *pool) release(w *worker) {
	if w.broken.Load() {
		p.retire(context.Background(), w)
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		w.shutdown()
		return
	}
	p.free <- w
}

// Close retires every idle worker. Workers currently checked out die when
// released.
func (p *pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	for {
		select {
		case w := <-p.free:
			w.shutdown()
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
		default:
			return nil
		}
	}
}
