package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"athyper/internal/kernel"
	"athyper/pkg/audit"
	"athyper/pkg/config"
	"athyper/pkg/container"
	"athyper/pkg/tenantctx"
)

type captureAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAudit) Write(_ context.Context, ev audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureAudit) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Kind)
	}
	return out
}

func workerRuntime(sink *captureAudit) *kernel.Runtime {
	log := zap.NewNop().Sugar()
	return &kernel.Runtime{
		Config: &config.Config{
			Env: "dev",
			IAM: config.IAM{
				DefaultRealmKey:  "acme",
				DefaultTenantKey: "t1",
				Realms: map[string]config.Realm{
					"acme": {Tenants: map[string]config.Tenant{"t1": {}, "t2": {}}},
				},
			},
		},
		Log:       log,
		Container: container.New(),
		Lifecycle: container.NewLifecycle(log),
		Audit:     sink,
	}
}

func TestDispatchRunsHandlerInScope(t *testing.T) {
	sink := &captureAudit{}
	rt := workerRuntime(sink)
	reg := NewRegistry()

	var got Job
	var scopedTenant *tenantctx.TenantContext
	reg.Add("email.send", func(ctx context.Context, scope *container.Container, tc *tenantctx.TenantContext, job Job) error {
		got = job
		v, err := scope.Resolve(ctx, kernel.TokenTenantContext)
		if err != nil {
			return err
		}
		scopedTenant = v.(*tenantctx.TenantContext)
		return nil
	})

	NewRunner().dispatch(context.Background(), rt, reg, []byte(`{"type":"email.send","tenantKey":"t2","payload":{"to":"a@b.c"}}`))

	assert.Equal(t, "email.send", got.Type)
	assert.Equal(t, "a@b.c", got.Payload["to"])
	require.NotNil(t, scopedTenant)
	assert.Equal(t, "t2", scopedTenant.TenantKey)
	assert.Equal(t, "acme", scopedTenant.RealmKey, "realm falls back to the configured default")
	assert.Equal(t, []string{"job.done"}, sink.kinds())
}

func TestDispatchAuditsHandlerFailure(t *testing.T) {
	sink := &captureAudit{}
	rt := workerRuntime(sink)
	reg := NewRegistry()
	reg.Add("boom", func(context.Context, *container.Container, *tenantctx.TenantContext, Job) error {
		return errors.New("smtp down")
	})

	NewRunner().dispatch(context.Background(), rt, reg, []byte(`{"type":"boom"}`))

	require.Equal(t, []string{"job.failed"}, sink.kinds())
	assert.Equal(t, "smtp down", sink.events[0].Detail["err"])
}

func TestDispatchRejectsUnknownTenant(t *testing.T) {
	sink := &captureAudit{}
	rt := workerRuntime(sink)
	reg := NewRegistry()
	called := false
	reg.Add("email.send", func(context.Context, *container.Container, *tenantctx.TenantContext, Job) error {
		called = true
		return nil
	})

	NewRunner().dispatch(context.Background(), rt, reg, []byte(`{"type":"email.send","tenantKey":"ghost"}`))

	assert.False(t, called)
	assert.Equal(t, []string{"job.rejected"}, sink.kinds())
}

func TestDispatchIgnoresMalformedPayload(t *testing.T) {
	sink := &captureAudit{}
	rt := workerRuntime(sink)

	NewRunner().dispatch(context.Background(), rt, NewRegistry(), []byte(`{not json`))

	assert.Empty(t, sink.kinds())
}

func TestDispatchIgnoresUnknownJobType(t *testing.T) {
	sink := &captureAudit{}
	rt := workerRuntime(sink)

	NewRunner().dispatch(context.Background(), rt, NewRegistry(), []byte(`{"type":"nobody.home"}`))

	assert.Empty(t, sink.kinds())
}
