// pkg/container/lifecycle.go
package container

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Lifecycle collects shutdown hooks and runs them in reverse
// registration order: the last component built stops first, which
// mirrors dependency order since components register cleanup right
// after constructing their dependents.
type Lifecycle struct {
	log *zap.SugaredLogger

	mu    sync.Mutex
	hooks []shutdownHook
	down  bool
}

type shutdownHook struct {
	name string
	fn   func(context.Context) error
}

func NewLifecycle(log *zap.SugaredLogger) *Lifecycle {
	return &Lifecycle{log: log}
}

// OnShutdown appends a shutdown hook. Hooks registered after shutdown
// has begun are dropped.
func (l *Lifecycle) OnShutdown(name string, fn func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.down {
		l.log.Warnw("shutdown hook registered after shutdown began", "hook", name)
		return
	}
	l.hooks = append(l.hooks, shutdownHook{name: name, fn: fn})
}

// Shutdown runs the hooks in reverse registration order. It is
// idempotent: a second call (including a concurrent one) is a no-op.
// A failing or panicking hook is logged and never blocks the remaining
// hooks. Returns once every hook has run or ctx expired.
func (l *Lifecycle) Shutdown(ctx context.Context, reason string) {
	l.mu.Lock()
	if l.down {
		l.mu.Unlock()
		return
	}
	l.down = true
	hooks := make([]shutdownHook, len(l.hooks))
	copy(hooks, l.hooks)
	l.mu.Unlock()

	l.log.Infow("shutdown", "reason", reason, "hooks", len(hooks))
	for i := len(hooks) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			l.log.Warnw("shutdown deadline reached, abandoning remaining hooks", "remaining", i+1)
			return
		}
		l.runHook(ctx, hooks[i])
	}
}

func (l *Lifecycle) runHook(ctx context.Context, h shutdownHook) {
	defer func() {
		if rec := recover(); rec != nil {
			l.log.Errorw("shutdown hook panic", "hook", h.name, "err", rec)
		}
	}()
	if err := h.fn(ctx); err != nil {
		l.log.Errorw("shutdown hook failed", "hook", h.name, "err", err)
	}
}
