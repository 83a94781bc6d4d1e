// pkg/authn/pipeline.go
package authn

import (
	"context"
	"fmt"
	"strings"

	"athyper/pkg/tenantctx"
)

// Pipeline runs the per-request authentication sequence: bearer
// extraction, cryptographic verification through the realm's verifier,
// then the defense-in-depth claim checks, then claim normalization.
type Pipeline struct {
	src Source
}

func NewPipeline(src Source) *Pipeline {
	return &Pipeline{src: src}
}

// BearerToken extracts the token from an Authorization header value.
// Scheme matching is case-insensitive.
func BearerToken(authz string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(authz[len("bearer "):])
	return tok, tok != ""
}

// Authenticate resolves the AuthContext for one request scope. An
// absent token yields KindAuthRequired when required, else the
// anonymous context. Claims are only trusted after verification; the
// three claim checks run in fixed order (type, azp, tenant) and the
// first violation is reported.
func (p *Pipeline) Authenticate(ctx context.Context, authz string, tc *tenantctx.TenantContext, required bool) (*AuthContext, error) {
	raw, ok := BearerToken(authz)
	if !ok {
		if required {
			return nil, &Error{Kind: KindAuthRequired, Detail: "missing bearer token"}
		}
		return Anonymous(tc), nil
	}

	verifier, err := p.src.Get(ctx, tc.RealmKey)
	if err != nil {
		return nil, fmt.Errorf("authn: verifier for realm %q: %w", tc.RealmKey, err)
	}
	claims, verr := verifier.Verify(ctx, raw)
	if verr != nil {
		return nil, verr
	}

	if cerr := CheckTokenType(claims); cerr != nil {
		return nil, cerr
	}
	if cerr := CheckAuthorizedParty(claims, verifier.ClientID()); cerr != nil {
		return nil, cerr
	}
	if cerr := CheckTenantBinding(claims, tc.TenantKey); cerr != nil {
		return nil, cerr
	}
	return normalizeClaims(claims, tc), nil
}

// CheckTokenType rejects refresh/ID tokens presented as access tokens:
// a present typ claim must equal "Bearer".
func CheckTokenType(claims map[string]any) *Error {
	typ, ok := claims["typ"].(string)
	if !ok || typ == "" {
		return nil
	}
	if typ != "Bearer" {
		return &Error{Kind: KindInvalidType, Detail: fmt.Sprintf("token type %q is not an access token", typ)}
	}
	return nil
}

// CheckAuthorizedParty rejects tokens issued to a sibling client of the
// same realm: a present azp claim must equal the realm's client id.
func CheckAuthorizedParty(claims map[string]any, clientID string) *Error {
	azp, ok := claims["azp"].(string)
	if !ok || azp == "" {
		return nil
	}
	if clientID != "" && azp != clientID {
		return &Error{Kind: KindAzpMismatch, Detail: fmt.Sprintf("authorized party %q does not match client %q", azp, clientID)}
	}
	return nil
}

// CheckTenantBinding rejects token replay across tenants: a present
// tenant_key claim must match the tenant already resolved for this
// request.
func CheckTenantBinding(claims map[string]any, tenantKey string) *Error {
	claimed, ok := claims["tenant_key"].(string)
	if !ok || claimed == "" || tenantKey == "" {
		return nil
	}
	if claimed != tenantKey {
		return &Error{Kind: KindTenantMismatch, Detail: fmt.Sprintf("token bound to tenant %q, request resolved to %q", claimed, tenantKey)}
	}
	return nil
}
