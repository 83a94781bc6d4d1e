// pkg/config/validate.go
package config

import (
	"fmt"
	"strings"

	"athyper/pkg/secrets"
)

var knownEnvs = map[string]bool{"dev": true, "staging": true, "prod": true}

// Validate checks the decoded tree against the schema rules the kernel
// relies on. Each failure class keeps its own ErrorKind so bootstrap
// can exit with a distinct, documented code.
func Validate(cfg *Config, sec secrets.Resolver) error {
	if !knownEnvs[cfg.Env] {
		return &Error{Kind: ErrSchema, Path: "env", Detail: fmt.Sprintf("unknown environment %q (want dev|staging|prod)", cfg.Env)}
	}
	if len(cfg.IAM.Realms) == 0 {
		return &Error{Kind: ErrSchema, Path: "iam.realms", Detail: "at least one realm is required"}
	}
	for key, realm := range cfg.IAM.Realms {
		path := "iam.realms." + key
		if strings.TrimSpace(realm.IAM.IssuerURL) == "" {
			return &Error{Kind: ErrSchema, Path: path + ".iam.issuerUrl", Detail: "issuer URL is required"}
		}
		if strings.TrimSpace(realm.IAM.ClientID) == "" {
			return &Error{Kind: ErrSchema, Path: path + ".iam.clientId", Detail: "client id is required"}
		}
		if ref := realm.IAM.ClientSecretRef; ref != "" {
			if _, ok := sec.Resolve(ref); !ok {
				return &Error{Kind: ErrSecret, Path: path + ".iam.clientSecretRef", Detail: fmt.Sprintf("secret reference %q cannot be resolved", ref)}
			}
		}
	}
	if cfg.IAM.DefaultRealmKey == "" {
		return &Error{Kind: ErrRealm, Path: "iam.defaultRealmKey", Detail: "default realm key is required"}
	}
	if _, ok := cfg.IAM.Realms[cfg.IAM.DefaultRealmKey]; !ok {
		return &Error{Kind: ErrRealm, Path: "iam.defaultRealmKey", Detail: fmt.Sprintf("default realm %q is not configured", cfg.IAM.DefaultRealmKey)}
	}
	// Default tenant/org keys are validated by the tenant resolver at
	// boot so each failure keeps its own tenant-context kind.
	return nil
}
