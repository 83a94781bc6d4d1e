package httpapi

import (
	"context"
	"net/http"

	"athyper/pkg/authn"
	"athyper/pkg/container"
	"athyper/pkg/tenantctx"
)

// RequestContext is what the HTTP entrypoint contributes to the scope:
// request identity plus pre-decoded claims. Claims are populated from
// the iam.trustedClaimsHeader header when configured (a gateway that
// verified the token upstream); otherwise they stay nil and tenant
// resolution sees headers and defaults only.
type RequestContext struct {
	ID     string
	Method string
	Path   string
	Header http.Header
	Claims map[string]any
}

// HandlerContext is the composed per-request context handed to
// business-logic handlers.
type HandlerContext struct {
	Scope   *container.Container
	Request *RequestContext
	Tenant  *tenantctx.TenantContext
	Auth    *authn.AuthContext
}

type ctxHandlerKey struct{}

func withHandlerContext(ctx context.Context, hc *HandlerContext) context.Context {
	return context.WithValue(ctx, ctxHandlerKey{}, hc)
}

// HandlerContextFrom returns the composed context for the current
// request, or nil on public routes.
func HandlerContextFrom(ctx context.Context) *HandlerContext {
	if v := ctx.Value(ctxHandlerKey{}); v != nil {
		if hc, ok := v.(*HandlerContext); ok {
			return hc
		}
	}
	return nil
}
