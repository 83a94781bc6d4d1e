// pkg/secrets/secrets.go
package secrets

import (
	"os"
	"strings"
)

// Resolver resolves a secret reference from configuration into its
// value. References keep secrets out of config files; the second return
// is false when the reference cannot be resolved.
type Resolver interface {
	Resolve(ref string) (string, bool)
}

// Env resolves references of the form "env:NAME" (or a bare NAME) from
// process environment variables.
type Env struct{}

func (Env) Resolve(ref string) (string, bool) {
	name := strings.TrimPrefix(ref, "env:")
	if name == "" {
		return "", false
	}
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Static resolves from a fixed map. Used in tests and local bring-up.
type Static map[string]string

func (s Static) Resolve(ref string) (string, bool) {
	v, ok := s[ref]
	return v, ok
}

// Chain tries each resolver in order.
type Chain []Resolver

func (c Chain) Resolve(ref string) (string, bool) {
	for _, r := range c {
		if v, ok := r.Resolve(ref); ok {
			return v, true
		}
	}
	return "", false
}
