// pkg/tenantctx/resolver.go
package tenantctx

import (
	"context"
	"net/http"

	"athyper/pkg/config"
)

// TenantContext identifies the realm/tenant/org partition one request
// or job runs in, plus the cascaded defaults for that partition.
// Created once per scope and never mutated afterwards.
type TenantContext struct {
	RealmKey  string
	TenantKey string
	OrgKey    string
	Defaults  map[string]any
}

// Request is the request-path input: client headers plus the claims of
// an already-verified token, when the entrypoint attached them.
type Request struct {
	Headers http.Header
	Claims  map[string]any
}

// Job is the job-path input: explicit overrides from the job payload.
type Job struct {
	RealmKey  string
	TenantKey string
	OrgKey    string
}

// Header names the client may supply. Advisory in strict mode.
const (
	HeaderRealm  = "x-realm"
	HeaderTenant = "x-tenant"
	HeaderOrg    = "x-org"
)

// Claim key aliases, checked in order.
var (
	realmClaims  = []string{"realmKey", "realm", "realm_key"}
	tenantClaims = []string{"tenantKey", "tenant", "tenant_key"}
	orgClaims    = []string{"orgKey", "org", "org_key"}
)

// Resolve derives the TenantContext for one request.
//
// Strict mode (prod with requireTenantClaimsInProd) makes verified
// claims authoritative over client headers and disables the configured
// default fallback; outside strict mode headers win and defaults fill
// the gaps. The fallback applies even when a verified token was present
// but carried no tenant claim.
func Resolve(ctx context.Context, cfg *config.Config, req Request) (*TenantContext, error) {
	strict := cfg.IsProd() && cfg.IAM.RequireTenantClaimsInProd

	realm := pick(strict,
		claimString(req.Claims, realmClaims),
		headerValue(req.Headers, HeaderRealm),
		cfg.IAM.DefaultRealmKey)
	tenant := pick(strict,
		claimString(req.Claims, tenantClaims),
		headerValue(req.Headers, HeaderTenant),
		cfg.IAM.DefaultTenantKey)
	org := pick(strict,
		claimString(req.Claims, orgClaims),
		headerValue(req.Headers, HeaderOrg),
		cfg.IAM.DefaultOrgKey)

	if strict && tenant == "" {
		return nil, &Error{Kind: KindContextRequired, RealmKey: realm}
	}
	return validate(cfg, realm, tenant, org)
}

// ResolveJob derives the TenantContext for one background job or
// scheduled run. No header/claim precedence applies; empty payload
// fields fall back to the configured defaults.
func ResolveJob(ctx context.Context, cfg *config.Config, job Job) (*TenantContext, error) {
	realm := fallback(job.RealmKey, cfg.IAM.DefaultRealmKey)
	tenant := fallback(job.TenantKey, cfg.IAM.DefaultTenantKey)
	org := fallback(job.OrgKey, cfg.IAM.DefaultOrgKey)
	return validate(cfg, realm, tenant, org)
}

func validate(cfg *config.Config, realmKey, tenantKey, orgKey string) (*TenantContext, error) {
	realm, ok := cfg.Realm(realmKey)
	if !ok {
		return nil, &Error{Kind: KindUnknownRealm, RealmKey: realmKey, Valid: sortedKeys(cfg.IAM.Realms)}
	}
	var tenant config.Tenant
	if tenantKey != "" {
		tenant, ok = realm.Tenants[tenantKey]
		if !ok {
			return nil, &Error{Kind: KindUnknownTenant, RealmKey: realmKey, TenantKey: tenantKey, Valid: sortedKeys(realm.Tenants)}
		}
	}
	var org config.Org
	if orgKey != "" {
		if tenantKey == "" {
			return nil, &Error{Kind: KindOrgWithoutTenant, RealmKey: realmKey, OrgKey: orgKey}
		}
		org, ok = tenant.Orgs[orgKey]
		if !ok {
			return nil, &Error{Kind: KindUnknownOrg, RealmKey: realmKey, TenantKey: tenantKey, OrgKey: orgKey, Valid: sortedKeys(tenant.Orgs)}
		}
	}
	return &TenantContext{
		RealmKey:  realmKey,
		TenantKey: tenantKey,
		OrgKey:    orgKey,
		Defaults:  EffectiveDefaults(realm.Defaults, tenant.Defaults, org.Defaults),
	}, nil
}

// pick applies the precedence rule: claim over header when strict,
// header over claim otherwise. Configured defaults apply only when not
// strict.
func pick(strict bool, claim, header, def string) string {
	if strict {
		if claim != "" {
			return claim
		}
		return header
	}
	if header != "" {
		return header
	}
	if claim != "" {
		return claim
	}
	return def
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func headerValue(h http.Header, name string) string {
	if h == nil {
		return ""
	}
	return h.Get(name)
}

func claimString(claims map[string]any, aliases []string) string {
	for _, k := range aliases {
		if v, ok := claims[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
