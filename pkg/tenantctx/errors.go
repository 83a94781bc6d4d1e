// pkg/tenantctx/errors.go
package tenantctx

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the stable machine-readable classification of a tenant
// context failure. These surface as client errors per request and as
// distinct exit codes when hit during boot.
type Kind string

const (
	KindUnknownRealm     Kind = "TENANT_UNKNOWN_REALM"
	KindUnknownTenant    Kind = "TENANT_UNKNOWN_TENANT"
	KindUnknownOrg       Kind = "TENANT_UNKNOWN_ORG"
	KindOrgWithoutTenant Kind = "TENANT_ORG_WITHOUT_TENANT"
	KindContextRequired  Kind = "TENANT_CONTEXT_REQUIRED"
)

// Error carries the attempted keys and, for not-found cases, the valid
// keys at that level. Key lists aid operator diagnosis; no secrets live
// in the tenant tree.
type Error struct {
	Kind      Kind
	RealmKey  string
	TenantKey string
	OrgKey    string
	Valid     []string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tenantctx: %s", e.Kind)
	if e.RealmKey != "" {
		fmt.Fprintf(&b, " realm=%q", e.RealmKey)
	}
	if e.TenantKey != "" {
		fmt.Fprintf(&b, " tenant=%q", e.TenantKey)
	}
	if e.OrgKey != "" {
		fmt.Fprintf(&b, " org=%q", e.OrgKey)
	}
	if len(e.Valid) > 0 {
		fmt.Fprintf(&b, " valid=[%s]", strings.Join(e.Valid, ", "))
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
