package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"athyper/internal/kernel"
	"athyper/pkg/audit"
	"athyper/pkg/authn"
	"athyper/pkg/config"
	"athyper/pkg/container"
)

type fakeVerifier struct {
	clientID string
	claims   map[string]any
	verr     *authn.Error
}

func (f *fakeVerifier) Verify(context.Context, string) (map[string]any, *authn.Error) {
	return f.claims, f.verr
}

func (f *fakeVerifier) ClientID() string { return f.clientID }

type fakeSource struct {
	v *fakeVerifier
}

func (f *fakeSource) Get(context.Context, string) (authn.Verifier, error) { return f.v, nil }

func apiConfig(env string) *config.Config {
	return &config.Config{
		Env: env,
		IAM: config.IAM{
			DefaultRealmKey:  "acme",
			DefaultTenantKey: "t1",
			Realms: map[string]config.Realm{
				"acme": {
					IAM: config.RealmIAM{IssuerURL: "https://iam.example.com/realms/acme", ClientID: "athyper-api"},
					Tenants: map[string]config.Tenant{
						"t1": {Orgs: map[string]config.Org{"o1": {}}},
						"t2": {},
					},
				},
			},
		},
	}
}

func testRuntime(t *testing.T, cfg *config.Config, verifier *fakeVerifier) *kernel.Runtime {
	t.Helper()
	log := zap.NewNop().Sugar()
	root := container.New()
	rt := &kernel.Runtime{
		Config:    cfg,
		Log:       log,
		Container: root,
		Lifecycle: container.NewLifecycle(log),
		Audit:     audit.Discard{},
	}
	root.MustRegister(kernel.TokenPipeline, func(context.Context, *container.Container) (any, error) {
		return authn.NewPipeline(&fakeSource{v: verifier}), nil
	}, container.Process)
	return rt
}

func serve(rt *kernel.Runtime, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewRunner().router(rt).ServeHTTP(rec, req)
	return rec
}

func TestHealthzIsPublic(t *testing.T) {
	rt := testRuntime(t, apiConfig("prod"), &fakeVerifier{clientID: "athyper-api"})
	rec := serve(rt, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingTokenRejectedInProd(t *testing.T) {
	rt := testRuntime(t, apiConfig("prod"), &fakeVerifier{clientID: "athyper-api"})
	rec := serve(rt, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "AUTH_REQUIRED", problem["code"])
}

func TestAnonymousAllowedInDev(t *testing.T) {
	rt := testRuntime(t, apiConfig("dev"), &fakeVerifier{clientID: "athyper-api"})
	rec := serve(rt, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["authenticated"])
	assert.Equal(t, "acme", body["realm"])
	assert.Equal(t, "t1", body["tenant"], "configured default tenant")
	assert.NotEmpty(t, body["requestId"])
}

func TestAuthenticatedRequestComposesContext(t *testing.T) {
	rt := testRuntime(t, apiConfig("prod"), &fakeVerifier{
		clientID: "athyper-api",
		claims: map[string]any{
			"typ":                "Bearer",
			"azp":                "athyper-api",
			"sub":                "u1",
			"preferred_username": "jdoe",
			"realm_access":       map[string]any{"roles": []any{"user"}},
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("x-tenant", "t2")
	rec := serve(rt, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "jdoe", body["userId"])
	assert.Equal(t, "t2", body["tenant"])
	assert.Equal(t, []any{"user"}, body["roles"])
}

func TestUnknownTenantHeaderIs404(t *testing.T) {
	rt := testRuntime(t, apiConfig("dev"), &fakeVerifier{clientID: "athyper-api"})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("x-tenant", "ghost")
	rec := serve(rt, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "TENANT_UNKNOWN_TENANT", problem["code"])
}

func TestAzpMismatchIs403(t *testing.T) {
	rt := testRuntime(t, apiConfig("prod"), &fakeVerifier{
		clientID: "athyper-api",
		claims:   map[string]any{"typ": "Bearer", "azp": "other-client", "sub": "u1"},
	})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := serve(rt, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTrustedClaimsHeaderBeatsTenantHeaderInStrictMode(t *testing.T) {
	cfg := apiConfig("prod")
	cfg.IAM.RequireTenantClaimsInProd = true
	cfg.IAM.TrustedClaimsHeader = "x-jwt-payload"
	rt := testRuntime(t, cfg, &fakeVerifier{
		clientID: "athyper-api",
		claims:   map[string]any{"typ": "Bearer", "azp": "athyper-api", "sub": "u1"},
	})

	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"tenantKey":"t2"}`))
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("x-jwt-payload", payload)
	req.Header.Set("x-tenant", "t1")
	rec := serve(rt, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "t2", body["tenant"], "gateway claims outrank the client header")
}

func TestMalformedTrustedClaimsHeaderIgnored(t *testing.T) {
	cfg := apiConfig("dev")
	cfg.IAM.TrustedClaimsHeader = "x-jwt-payload"
	rt := testRuntime(t, cfg, &fakeVerifier{clientID: "athyper-api"})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("x-jwt-payload", "%%% not base64 %%%")
	rec := serve(rt, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "t1", body["tenant"], "falls back to the configured default")
}

func TestExpiredTokenIs401(t *testing.T) {
	rt := testRuntime(t, apiConfig("prod"), &fakeVerifier{
		clientID: "athyper-api",
		verr:     &authn.Error{Kind: authn.KindExpired},
	})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := serve(rt, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "JWT_EXPIRED", problem["code"])
}
