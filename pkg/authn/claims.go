// pkg/authn/claims.go
package authn

import (
	"github.com/jmespath/go-jmespath"

	"athyper/pkg/tenantctx"
)

// AuthContext is the per-scope identity derived from a verified token
// (or the anonymous default when no token is required). Immutable
// after creation.
type AuthContext struct {
	Authenticated bool

	RealmKey  string
	TenantKey string
	OrgKey    string

	Subject string
	UserID  string
	Email   string
	Name    string

	Roles  map[string]struct{}
	Groups map[string]struct{}

	// Claims is the raw verified claim map; never trusted beyond what
	// the pipeline already checked.
	Claims map[string]any
}

func (a *AuthContext) HasRole(role string) bool {
	_, ok := a.Roles[role]
	return ok
}

func (a *AuthContext) HasGroup(group string) bool {
	_, ok := a.Groups[group]
	return ok
}

// Anonymous returns the unauthenticated AuthContext carrying only the
// tenant identity.
func Anonymous(tc *tenantctx.TenantContext) *AuthContext {
	a := &AuthContext{Roles: map[string]struct{}{}, Groups: map[string]struct{}{}}
	if tc != nil {
		a.RealmKey, a.TenantKey, a.OrgKey = tc.RealmKey, tc.TenantKey, tc.OrgKey
	}
	return a
}

// Role claim paths. Realm roles live under realm_access; client roles
// are collected across every client present under resource_access.
var (
	realmRolesPath  = jmespath.MustCompile("realm_access.roles")
	clientRolesPath = jmespath.MustCompile("resource_access.*.roles[]")
)

// normalizeClaims builds the AuthContext from verified claims. userId
// prefers preferred_username over sub; malformed group entries are
// dropped silently.
func normalizeClaims(claims map[string]any, tc *tenantctx.TenantContext) *AuthContext {
	a := Anonymous(tc)
	a.Authenticated = true
	a.Claims = claims

	a.Subject = claimStr(claims, "sub")
	a.UserID = claimStr(claims, "preferred_username")
	if a.UserID == "" {
		a.UserID = a.Subject
	}
	a.Email = claimStr(claims, "email")
	a.Name = claimStr(claims, "name")

	addStrings(a.Roles, searchStrings(realmRolesPath, claims))
	addStrings(a.Roles, searchStrings(clientRolesPath, claims))

	if raw, ok := claims["groups"].([]any); ok {
		for _, g := range raw {
			if s, ok := g.(string); ok {
				a.Groups[s] = struct{}{}
			}
		}
	}
	return a
}

func claimStr(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

func searchStrings(path *jmespath.JMESPath, claims map[string]any) []string {
	res, err := path.Search(claims)
	if err != nil {
		return nil
	}
	items, ok := res.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func addStrings(set map[string]struct{}, vals []string) {
	for _, v := range vals {
		set[v] = struct{}{}
	}
}
