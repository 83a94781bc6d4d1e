package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"athyper/internal/kernel"
	"athyper/pkg/audit"
	"athyper/pkg/authn"
	"athyper/pkg/container"
	"athyper/pkg/middleware"
	"athyper/pkg/problems"
	"athyper/pkg/tenantctx"
)

// Paths served without tenant/auth context.
var publicPrefixes = []string{"/healthz", "/metrics", "/.well-known/"}

func isPublic(path string) bool {
	for _, p := range publicPrefixes {
		if path == p || strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// kernelMiddleware creates a child scope per request and resolves, in
// order, RequestContext, TenantContext and AuthContext into it. The
// scoped registrations shadow nothing at process level and are dropped
// with the scope when the request ends.
func kernelMiddleware(rt *kernel.Runtime) func(http.Handler) http.Handler {
	cfg := rt.Config
	required := cfg.AuthRequired() && cfg.Env != "dev"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			scope := rt.Container.CreateScope()

			rq := &RequestContext{
				ID:     middleware.RequestIDFrom(r.Context()),
				Method: r.Method,
				Path:   r.URL.Path,
				Header: r.Header,
			}
			if name := cfg.IAM.TrustedClaimsHeader; name != "" {
				rq.Claims = decodeClaimsHeader(r.Header.Get(name))
			}
			scope.MustRegister(kernel.TokenRequestContext, func(context.Context, *container.Container) (any, error) {
				return rq, nil
			}, container.Scoped)
			scope.MustRegister(kernel.TokenTenantContext, func(ctx context.Context, c *container.Container) (any, error) {
				v, err := c.Resolve(ctx, kernel.TokenRequestContext)
				if err != nil {
					return nil, err
				}
				req := v.(*RequestContext)
				return tenantctx.Resolve(ctx, cfg, tenantctx.Request{Headers: req.Header, Claims: req.Claims})
			}, container.Scoped)
			scope.MustRegister(kernel.TokenAuthContext, func(ctx context.Context, c *container.Container) (any, error) {
				tv, err := c.Resolve(ctx, kernel.TokenTenantContext)
				if err != nil {
					return nil, err
				}
				pv, err := c.Resolve(ctx, kernel.TokenPipeline)
				if err != nil {
					return nil, err
				}
				tc := tv.(*tenantctx.TenantContext)
				return pv.(*authn.Pipeline).Authenticate(ctx, r.Header.Get("Authorization"), tc, required)
			}, container.Scoped)

			hc, err := composeHandlerContext(r.Context(), scope, rq)
			if err != nil {
				rejectRequest(rt, w, r, rq, err)
				return
			}
			requestsTotal.WithLabelValues("ok").Inc()
			next.ServeHTTP(w, r.WithContext(withHandlerContext(r.Context(), hc)))
		})
	}
}

// decodeClaimsHeader decodes a gateway-attached claims header:
// base64 (url or standard alphabet, padded or not) wrapping a JSON
// object. Anything malformed yields nil claims rather than an error;
// the header is advisory input to tenant resolution, not credentials.
func decodeClaimsHeader(value string) map[string]any {
	if value == "" {
		return nil
	}
	var raw []byte
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding} {
		if b, err := enc.DecodeString(value); err == nil {
			raw = b
			break
		}
	}
	if raw == nil {
		return nil
	}
	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil
	}
	return claims
}

func composeHandlerContext(ctx context.Context, scope *container.Container, rq *RequestContext) (*HandlerContext, error) {
	tv, err := scope.Resolve(ctx, kernel.TokenTenantContext)
	if err != nil {
		return nil, err
	}
	av, err := scope.Resolve(ctx, kernel.TokenAuthContext)
	if err != nil {
		return nil, err
	}
	return &HandlerContext{
		Scope:   scope,
		Request: rq,
		Tenant:  tv.(*tenantctx.TenantContext),
		Auth:    av.(*authn.AuthContext),
	}, nil
}

func rejectRequest(rt *kernel.Runtime, w http.ResponseWriter, r *http.Request, rq *RequestContext, err error) {
	kind := failureKind(err)
	requestsTotal.WithLabelValues("rejected").Inc()
	rt.Log.Infow("request rejected", "kind", kind, "method", r.Method, "path", r.URL.Path, "reqid", rq.ID, "err", err)
	rt.Audit.Write(r.Context(), audit.Event{
		Kind:      "request.rejected",
		RequestID: rq.ID,
		Detail:    map[string]any{"kind": kind, "path": r.URL.Path},
	})
	problems.WriteError(w, err)
}

func failureKind(err error) string {
	var terr *tenantctx.Error
	if errors.As(err, &terr) {
		tenantFailures.WithLabelValues(string(terr.Kind)).Inc()
		return string(terr.Kind)
	}
	var aerr *authn.Error
	if errors.As(err, &aerr) {
		authFailures.WithLabelValues(string(aerr.Kind)).Inc()
		return string(aerr.Kind)
	}
	return "internal"
}
