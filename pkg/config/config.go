// pkg/config/config.go
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the validated configuration tree for one process. The realm
// tree under IAM is the source of truth for tenant topology; env vars
// override addresses and connection URLs only.
type Config struct {
	Env      string `yaml:"env"`
	HTTPAddr string `yaml:"httpAddr"`

	// Infra (env-overridable; empty disables the adapter)
	RedisURL    string `yaml:"redisUrl"`
	DatabaseURL string `yaml:"databaseUrl"`

	JobQueueKey        string `yaml:"jobQueueKey"`
	ShutdownTimeoutSec int    `yaml:"shutdownTimeoutSec"`

	IAM IAM `yaml:"iam"`
}

// IAM describes identity configuration: global defaults plus the
// realm -> tenant -> org tree.
type IAM struct {
	RequireAuth               *bool  `yaml:"requireAuth"`
	RequireTenantClaimsInProd bool   `yaml:"requireTenantClaimsInProd"`
	DefaultRealmKey           string `yaml:"defaultRealmKey"`
	DefaultTenantKey          string `yaml:"defaultTenantKey"`
	DefaultOrgKey             string `yaml:"defaultOrgKey"`

	// TrustedClaimsHeader names a header carrying base64-encoded JSON
	// claims decoded by an upstream gateway (e.g. x-jwt-payload from an
	// Envoy JWT filter). Only set this behind a gateway that strips the
	// header from client traffic. Empty disables it.
	TrustedClaimsHeader string `yaml:"trustedClaimsHeader"`

	Realms map[string]Realm `yaml:"realms"`
}

type Realm struct {
	IAM      RealmIAM          `yaml:"iam"`
	Defaults map[string]any    `yaml:"defaults"`
	Tenants  map[string]Tenant `yaml:"tenants"`
}

// RealmIAM configures the realm's OIDC issuer and client. The client
// secret is referenced, never inlined; jwksUrl defaults to the issuer's
// standard certs endpoint.
type RealmIAM struct {
	IssuerURL             string   `yaml:"issuerUrl"`
	ClientID              string   `yaml:"clientId"`
	ClientSecretRef       string   `yaml:"clientSecretRef"`
	JWKSURL               string   `yaml:"jwksUrl"`
	Audience              string   `yaml:"audience"`
	AllowedAlgs           []string `yaml:"allowedAlgs"`
	ClockToleranceSeconds int      `yaml:"clockToleranceSeconds"`
}

type Tenant struct {
	Defaults map[string]any `yaml:"defaults"`
	Orgs     map[string]Org `yaml:"orgs"`
}

type Org struct {
	Defaults map[string]any `yaml:"defaults"`
}

func (c *Config) IsProd() bool { return c.Env == "prod" }

func (c *Config) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// AuthRequired reports whether requests outside the public prefixes
// must present a token. Defaults to true.
func (c *Config) AuthRequired() bool {
	if c.IAM.RequireAuth == nil {
		return true
	}
	return *c.IAM.RequireAuth
}

func (c *Config) Realm(key string) (Realm, bool) {
	r, ok := c.IAM.Realms[key]
	return r, ok
}

// RealmKeys returns the configured realm keys (for diagnostics).
func (c *Config) RealmKeys() []string {
	keys := make([]string, 0, len(c.IAM.Realms))
	for k := range c.IAM.Realms {
		keys = append(keys, k)
	}
	return keys
}

// Load reads and decodes the YAML configuration file at path, applies
// env overrides and fills defaults. Schema validation is a separate
// step (Validate) so boot can classify the two failure modes apart.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	if path == "" {
		path = env("ATHYPER_CONFIG", "athyper.yaml")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: ErrFile, Path: path, Err: err}
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, &Error{Kind: ErrFile, Path: path, Err: err}
	}

	cfg.Env = env("ATHYPER_ENV", cfg.Env)
	cfg.HTTPAddr = env("ATHYPER_HTTP_ADDR", cfg.HTTPAddr)
	cfg.RedisURL = env("REDIS_URL", cfg.RedisURL)
	cfg.DatabaseURL = env("DATABASE_URL", cfg.DatabaseURL)

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.JobQueueKey == "" {
		cfg.JobQueueKey = "athyper:jobs"
	}
	return cfg, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
