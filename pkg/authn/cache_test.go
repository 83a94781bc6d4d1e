package authn

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"athyper/pkg/config"
	"athyper/pkg/secrets"
)

func verifierConfig() *config.Config {
	return &config.Config{
		Env: "dev",
		IAM: config.IAM{
			DefaultRealmKey: "acme",
			Realms: map[string]config.Realm{
				"acme": {
					IAM: config.RealmIAM{
						IssuerURL:       "https://iam.example.com/realms/acme/",
						ClientID:        "athyper-api",
						ClientSecretRef: "acme-client-secret",
					},
				},
				"umbrella": {
					IAM: config.RealmIAM{
						IssuerURL: "https://iam.example.com/realms/umbrella",
						ClientID:  "umbrella-api",
						JWKSURL:   "https://keys.example.com/umbrella.json",
					},
				},
			},
		},
	}
}

func newTestVerifiers(t *testing.T) *Verifiers {
	t.Helper()
	return NewVerifiers(verifierConfig(), secrets.Static{"acme-client-secret": "s3cret"}, zap.NewNop().Sugar())
}

func TestGetConstructsOncePerRealm(t *testing.T) {
	vs := newTestVerifiers(t)

	const n = 16
	results := make([]Verifier, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := vs.Get(context.Background(), "acme")
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i], "all callers share one verifier")
	}
}

func TestGetDistinctPerRealm(t *testing.T) {
	vs := newTestVerifiers(t)
	a, err := vs.Get(context.Background(), "acme")
	require.NoError(t, err)
	b, err := vs.Get(context.Background(), "umbrella")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, "athyper-api", a.ClientID())
	assert.Equal(t, "umbrella-api", b.ClientID())
}

func TestGetUnknownRealm(t *testing.T) {
	vs := newTestVerifiers(t)
	_, err := vs.Get(context.Background(), "ghost")
	require.Error(t, err)
}

func TestGetUnresolvableSecretRef(t *testing.T) {
	vs := NewVerifiers(verifierConfig(), secrets.Static{}, zap.NewNop().Sugar())
	_, err := vs.Get(context.Background(), "acme")
	require.Error(t, err)
	// Construction failures are not cached; fixing the secret allows retry.
	_, err = vs.Get(context.Background(), "umbrella")
	require.NoError(t, err)
}

func TestVerifierDerivedSettings(t *testing.T) {
	vs := newTestVerifiers(t)
	v, err := vs.Get(context.Background(), "acme")
	require.NoError(t, err)
	rv := v.(*realmVerifier)
	assert.Equal(t, "https://iam.example.com/realms/acme", rv.issuer, "trailing slash trimmed")
	assert.Equal(t, "https://iam.example.com/realms/acme/protocol/openid-connect/certs", rv.jwksURL)

	u, err := vs.Get(context.Background(), "umbrella")
	require.NoError(t, err)
	assert.Equal(t, "https://keys.example.com/umbrella.json", u.(*realmVerifier).jwksURL, "explicit jwksUrl wins")
}
