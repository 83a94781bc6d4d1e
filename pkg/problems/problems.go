package problems

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"athyper/pkg/authn"
	"athyper/pkg/tenantctx"
)

// Base returns the base URL for problem type identifiers.
// Order of precedence:
// 1. PROBLEM_BASE_URL (exact base, e.g. https://mydomain.com/problems)
// 2. BASE_PUBLIC_URL + "/problems" (if set)
// 3. https://example.com/problems (fallback)
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if b := os.Getenv("BASE_PUBLIC_URL"); b != "" {
		return strings.TrimRight(b, "/") + "/problems"
	}
	return "https://example.com/problems"
}

// Type builds a full problem type URL for the given slug.
func Type(slug string) string { return Base() + "/" + slug }

// Problem is an RFC 7807 response body.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

// Write emits a problem response.
func Write(w http.ResponseWriter, status int, slug, title, detail, code string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:   Type(slug),
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   code,
	})
}

// WriteError maps kernel error kinds to problem responses. Tenant
// not-found kinds are 404, malformed context 400, auth failures 401,
// and the party/tenant mismatch kinds 403 (a valid token used in the
// wrong place).
func WriteError(w http.ResponseWriter, err error) {
	var terr *tenantctx.Error
	if errors.As(err, &terr) {
		switch terr.Kind {
		case tenantctx.KindUnknownRealm, tenantctx.KindUnknownTenant, tenantctx.KindUnknownOrg:
			Write(w, http.StatusNotFound, "tenant-not-found", "tenant context not found", terr.Error(), string(terr.Kind))
		default:
			Write(w, http.StatusBadRequest, "tenant-context", "tenant context invalid", terr.Error(), string(terr.Kind))
		}
		return
	}
	var aerr *authn.Error
	if errors.As(err, &aerr) {
		switch aerr.Kind {
		case authn.KindAzpMismatch, authn.KindTenantMismatch:
			Write(w, http.StatusForbidden, "token-rejected", "token rejected", aerr.Detail, string(aerr.Kind))
		default:
			Write(w, http.StatusUnauthorized, "unauthorized", "authentication failed", aerr.Detail, string(aerr.Kind))
		}
		return
	}
	Write(w, http.StatusInternalServerError, "internal", "internal error", "", "")
}
