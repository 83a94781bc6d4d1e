// pkg/authn/cache.go
package authn

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"athyper/pkg/config"
	"athyper/pkg/secrets"
)

// Source hands out the shared verifier for a realm. Implemented by
// Verifiers; tests substitute fakes.
type Source interface {
	Get(ctx context.Context, realmKey string) (Verifier, error)
}

// Verifiers lazily constructs one verifier per realm. Construction is
// deduplicated with a per-realm in-flight record so concurrent first
// use runs it at most once; constructed verifiers are write-once and
// shared across requests.
type Verifiers struct {
	cfg     *config.Config
	secrets secrets.Resolver
	log     *zap.SugaredLogger

	mu     sync.Mutex
	built  map[string]Verifier
	flight map[string]*verifierFlight
}

type verifierFlight struct {
	done chan struct{}
	v    Verifier
	err  error
}

func NewVerifiers(cfg *config.Config, sec secrets.Resolver, log *zap.SugaredLogger) *Verifiers {
	return &Verifiers{
		cfg:     cfg,
		secrets: sec,
		log:     log,
		built:   map[string]Verifier{},
		flight:  map[string]*verifierFlight{},
	}
}

func (vs *Verifiers) Get(ctx context.Context, realmKey string) (Verifier, error) {
	vs.mu.Lock()
	if v, ok := vs.built[realmKey]; ok {
		vs.mu.Unlock()
		return v, nil
	}
	if fl, ok := vs.flight[realmKey]; ok {
		vs.mu.Unlock()
		select {
		case <-fl.done:
			return fl.v, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &verifierFlight{done: make(chan struct{})}
	vs.flight[realmKey] = fl
	vs.mu.Unlock()

	fl.v, fl.err = vs.build(ctx, realmKey)
	vs.mu.Lock()
	if fl.err == nil {
		vs.built[realmKey] = fl.v
	}
	delete(vs.flight, realmKey)
	vs.mu.Unlock()
	close(fl.done)
	return fl.v, fl.err
}

func (vs *Verifiers) build(ctx context.Context, realmKey string) (Verifier, error) {
	realm, ok := vs.cfg.Realm(realmKey)
	if !ok {
		return nil, fmt.Errorf("authn: no realm %q in configuration", realmKey)
	}
	iam := realm.IAM
	if ref := iam.ClientSecretRef; ref != "" {
		// Resolved for adapters that need confidential-client calls;
		// bearer verification itself only needs the public key set.
		if _, found := vs.secrets.Resolve(ref); !found {
			return nil, fmt.Errorf("authn: realm %q secret reference %q cannot be resolved", realmKey, ref)
		}
	}
	issuer := strings.TrimRight(iam.IssuerURL, "/")
	jwksURL := iam.JWKSURL
	if jwksURL == "" {
		jwksURL = issuer + "/protocol/openid-connect/certs"
	}
	allowed := map[string]bool{}
	for _, a := range iam.AllowedAlgs {
		allowed[a] = true
	}
	vs.log.Infow("verifier constructed", "realm", realmKey, "issuer", issuer)
	return &realmVerifier{
		issuer:      issuer,
		clientID:    iam.ClientID,
		audience:    iam.Audience,
		jwksURL:     jwksURL,
		allowedAlgs: allowed,
		skew:        time.Duration(iam.ClockToleranceSeconds) * time.Second,
	}, nil
}
