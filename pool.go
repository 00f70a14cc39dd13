package sqlmux

import "context"

// Option configures a ConfigAndPool at construction.
type Option func(*ConfigAndPool)

// WithLogger sets the structured logger for the pool facade. A *slog.Logger
// satisfies the interface directly.
func WithLogger(logger Logger) Option {
	return func(p *ConfigAndPool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// ConfigAndPool holds the variant-tagged pool for one database together with
// its backend tag and the pool-level translation default. It is cheap to copy
// by pointer and safe for concurrent use; create it once per database via a
// driver package's NewConfigAndPool and share it.
type ConfigAndPool struct {
	backend PoolBackend
	logger  Logger
}

// NewPool wraps a backend pool in the erased facade. Driver packages call this
// from their NewConfigAndPool constructors; application code normally does
// not.
func NewPool(backend PoolBackend, opts ...Option) *ConfigAndPool {
	p := &ConfigAndPool{backend: backend, logger: NopLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DatabaseType returns the backend tag for this pool.
func (p *ConfigAndPool) DatabaseType() DatabaseType { return p.backend.DatabaseType() }

// TranslateByDefault returns the pool-level placeholder translation default.
func (p *ConfigAndPool) TranslateByDefault() bool { return p.backend.TranslateByDefault() }

// GetConnection checks a connection out of the pool. The wait is bounded by
// the pool's acquire timeout and by ctx; a bounded pool that stays empty
// surfaces a pool-category error wrapping ErrPoolExhausted.
func (p *ConfigAndPool) GetConnection(ctx context.Context) (*Conn, error) {
	exec, err := p.backend.Acquire(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "connection checkout failed", "db", p.backend.DatabaseType().String(), "error", err)
		return nil, err
	}
	p.logger.DebugContext(ctx, "connection checked out", "db", p.backend.DatabaseType().String())
	return &Conn{exec: exec, logger: p.logger}, nil
}

// Close tears down the pool and its connections.
func (p *ConfigAndPool) Close() error { return p.backend.Close() }
