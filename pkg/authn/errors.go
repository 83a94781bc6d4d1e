// pkg/authn/errors.go
package authn

import "fmt"

// Kind is the stable machine-readable classification of an
// authentication failure. A rejected token is never re-verified.
type Kind string

const (
	KindAuthRequired     Kind = "AUTH_REQUIRED"
	KindExpired          Kind = "JWT_EXPIRED"
	KindInvalidSignature Kind = "JWT_INVALID_SIGNATURE"
	KindIssuerMismatch   Kind = "JWT_ISSUER_MISMATCH"
	KindAudienceMismatch Kind = "JWT_AUDIENCE_MISMATCH"
	KindInvalid          Kind = "JWT_INVALID"
	KindInvalidType      Kind = "JWT_INVALID_TYPE"
	KindAzpMismatch      Kind = "JWT_AZP_MISMATCH"
	KindTenantMismatch   Kind = "JWT_TENANT_MISMATCH"
)

// Error is a typed authentication failure. Detail is operator-facing
// and never contains token material.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "authn: " + string(e.Kind)
	}
	return fmt.Sprintf("authn: %s: %s", e.Kind, e.Detail)
}
