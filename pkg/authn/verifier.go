// pkg/authn/verifier.go
package authn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier checks a token's signature and registered claims against one
// realm's issuer. Implementations return a typed *Error so callers
// never classify by inspecting message text.
type Verifier interface {
	Verify(ctx context.Context, raw string) (map[string]any, *Error)
	ClientID() string
}

// realmVerifier verifies against the issuer's published key set,
// fetched over the network and cached with a TTL.
type realmVerifier struct {
	issuer      string
	clientID    string
	audience    string
	jwksURL     string
	allowedAlgs map[string]bool
	skew        time.Duration

	jwks jwksCache
}

const jwksTTL = 6 * time.Hour

func (v *realmVerifier) ClientID() string { return v.clientID }

func (v *realmVerifier) Verify(ctx context.Context, raw string) (map[string]any, *Error) {
	if len(v.allowedAlgs) > 0 {
		if kerr := v.checkAlg(raw); kerr != nil {
			return nil, kerr
		}
	}
	set, err := v.jwks.get(ctx, v.jwksURL, jwksTTL)
	if err != nil {
		return nil, &Error{Kind: KindInvalid, Detail: "jwks fetch failed: " + err.Error()}
	}
	opts := []jwt.ParseOption{
		jwt.WithKeySet(set),
		jwt.WithIssuer(v.issuer),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	tok, perr := jwt.Parse([]byte(raw), opts...)
	if perr != nil {
		return nil, ClassifyVerifyError(perr)
	}
	claims, merr := tok.AsMap(ctx)
	if merr != nil {
		return nil, &Error{Kind: KindInvalid, Detail: merr.Error()}
	}
	return claims, nil
}

func (v *realmVerifier) checkAlg(raw string) *Error {
	msg, err := jws.Parse([]byte(raw))
	if err != nil || len(msg.Signatures()) == 0 {
		return &Error{Kind: KindInvalid, Detail: "malformed JWS envelope"}
	}
	alg := msg.Signatures()[0].ProtectedHeaders().Algorithm().String()
	if !v.allowedAlgs[alg] {
		return &Error{Kind: KindInvalidSignature, Detail: "signature algorithm " + alg + " not allowed"}
	}
	return nil
}

// ClassifyVerifyError translates an untyped verifier failure into a
// stable kind. Expiry is matched structurally; issuer/audience and
// signature failures fall back to substring matching because the
// underlying library reports them as plain claim-validation messages.
func ClassifyVerifyError(err error) *Error {
	if errors.Is(err, jwt.ErrTokenExpired()) {
		return &Error{Kind: KindExpired, Detail: "token expired"}
	}
	if errors.Is(err, jwt.ErrTokenNotYetValid()) {
		return &Error{Kind: KindInvalid, Detail: "token not yet valid"}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, `"iss"`), strings.Contains(msg, "issuer"):
		return &Error{Kind: KindIssuerMismatch, Detail: "issuer mismatch"}
	case strings.Contains(msg, `"aud"`), strings.Contains(msg, "audience"):
		return &Error{Kind: KindAudienceMismatch, Detail: "audience mismatch"}
	case strings.Contains(msg, "signature"), strings.Contains(msg, "verify"):
		return &Error{Kind: KindInvalidSignature, Detail: "signature verification failed"}
	default:
		return &Error{Kind: KindInvalid, Detail: "token rejected"}
	}
}

// jwksCache caches fetched key sets per URL with a TTL.
type jwksCache struct {
	mu   sync.RWMutex
	sets map[string]cachedJWKS
}

type cachedJWKS struct {
	set     jwk.Set
	expires time.Time
}

func (c *jwksCache) get(ctx context.Context, url string, ttl time.Duration) (jwk.Set, error) {
	c.mu.RLock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		c.mu.RUnlock()
		return e.set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets == nil {
		c.sets = map[string]cachedJWKS{}
	}
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		return e.set, nil
	}
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.sets[url] = cachedJWKS{set: set, expires: time.Now().Add(ttl)}
	return set, nil
}
