package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"athyper/internal/kernel"
	"athyper/pkg/middleware"
)

// Runner is the API-server runtime mode.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

func (*Runner) Name() string { return "api" }

// Run serves until ctx is cancelled. Graceful stop is a lifecycle hook
// so the ordered shutdown drains the server before adapters close.
func (s *Runner) Run(ctx context.Context, rt *kernel.Runtime) error {
	srv := &http.Server{Addr: rt.Config.HTTPAddr, Handler: s.router(rt)}
	rt.Lifecycle.OnShutdown("http.server", func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})

	errc := make(chan error, 1)
	go func() {
		rt.Log.Infow("api listening", "addr", rt.Config.HTTPAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		// Shutdown initiated elsewhere; wait for the listener to drain.
		if err := <-errc; err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (s *Runner) router(rt *kernel.Runtime) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(rt.Log))
	r.Use(middleware.Tracing())
	r.Use(kernelMiddleware(rt))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Identity echo: the one kernel-owned route, useful for smoke
	// checks of the composed handler context.
	r.Get("/whoami", whoami)
	return r
}

func whoami(w http.ResponseWriter, r *http.Request) {
	hc := HandlerContextFrom(r.Context())
	if hc == nil {
		http.Error(w, "no context", http.StatusInternalServerError)
		return
	}
	roles := make([]string, 0, len(hc.Auth.Roles))
	for role := range hc.Auth.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requestId":     hc.Request.ID,
		"authenticated": hc.Auth.Authenticated,
		"realm":         hc.Tenant.RealmKey,
		"tenant":        hc.Tenant.TenantKey,
		"org":           hc.Tenant.OrgKey,
		"userId":        hc.Auth.UserID,
		"roles":         roles,
	})
}
