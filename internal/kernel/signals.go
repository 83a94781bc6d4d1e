package kernel

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"athyper/pkg/container"
)

var (
	sigMu        sync.Mutex
	sigInstalled bool
)

// InstallSignalHandlers wires SIGINT/SIGTERM to one lifecycle shutdown,
// raced against the stop timeout so a slow hook cannot block process
// exit. The install-once guard covers repeated bootstraps within one
// process (test harnesses; a production binary boots once).
func InstallSignalHandlers(lc *container.Lifecycle, log *zap.SugaredLogger, timeout time.Duration) {
	sigMu.Lock()
	defer sigMu.Unlock()
	if sigInstalled {
		return
	}
	sigInstalled = true

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-ch
		log.Infow("signal received", "signal", sig.String())
		shutdownWithTimeout(lc, log, timeout, sig.String())
	}()
}

// shutdownWithTimeout races the ordered shutdown against the timeout;
// whichever finishes first wins.
func shutdownWithTimeout(lc *container.Lifecycle, log *zap.SugaredLogger, timeout time.Duration, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		lc.Shutdown(ctx, reason)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warnw("shutdown timed out", "timeout", timeout)
	}
}

// resetSignalGuard exists for tests that bootstrap repeatedly.
func resetSignalGuard() {
	sigMu.Lock()
	sigInstalled = false
	sigMu.Unlock()
}
