package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"athyper/internal/kernel"
	"athyper/pkg/audit"
	"athyper/pkg/container"
	"athyper/pkg/tenantctx"
)

// TokenHandlers is where feature modules contribute their job handlers.
const TokenHandlers container.Token = "worker.handlers"

// Job is one queued unit of work. Realm/tenant/org are explicit
// overrides for the job-path tenant resolution; empty fields fall back
// to configured defaults.
type Job struct {
	Type      string         `json:"type"`
	RealmKey  string         `json:"realmKey,omitempty"`
	TenantKey string         `json:"tenantKey,omitempty"`
	OrgKey    string         `json:"orgKey,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Handler processes one job inside its own scope.
type Handler func(ctx context.Context, scope *container.Container, tc *tenantctx.TenantContext, job Job) error

// Registry maps job types to handlers. Write side is used during
// module Contribute, read side by the consumer loop.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Add(jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Module wires the handler registry into the container. Registration
// only; feature modules resolve TokenHandlers in their Contribute
// phase to add handlers.
type Module struct{}

func (Module) Name() string { return "worker" }

func (Module) Register(c *container.Container) error {
	return c.Register(TokenHandlers, func(context.Context, *container.Container) (any, error) {
		return NewRegistry(), nil
	}, container.Process)
}

func (Module) Contribute(context.Context, *container.Container) error { return nil }

// Runner is the worker runtime mode: a redis list consumer that runs
// each job in a fresh scope.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

func (*Runner) Name() string { return "worker" }

func (w *Runner) Run(ctx context.Context, rt *kernel.Runtime) error {
	rv, err := rt.Container.Resolve(ctx, kernel.TokenRedis)
	if err != nil {
		return err
	}
	cli := rv.(*redis.Client)
	hv, err := rt.Container.Resolve(ctx, TokenHandlers)
	if err != nil {
		return err
	}
	reg := hv.(*Registry)

	queue := rt.Config.JobQueueKey
	rt.Log.Infow("worker consuming", "queue", queue)
	for {
		res, err := cli.BRPop(ctx, 5*time.Second, queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			rt.Log.Warnw("queue pop failed", "err", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if len(res) == 2 {
			w.dispatch(ctx, rt, reg, []byte(res[1]))
		}
	}
}

// dispatch never lets one bad job take the worker down.
func (w *Runner) dispatch(ctx context.Context, rt *kernel.Runtime, reg *Registry, raw []byte) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		rt.Log.Warnw("job unmarshal failed", "err", err)
		return
	}
	scope := rt.Container.CreateScope()
	tc, err := tenantctx.ResolveJob(ctx, rt.Config, tenantctx.Job{
		RealmKey:  job.RealmKey,
		TenantKey: job.TenantKey,
		OrgKey:    job.OrgKey,
	})
	if err != nil {
		rt.Log.Warnw("job tenant context rejected", "type", job.Type, "err", err)
		rt.Audit.Write(ctx, audit.Event{Kind: "job.rejected", Detail: map[string]any{"type": job.Type, "err": err.Error()}})
		return
	}
	scope.MustRegister(kernel.TokenTenantContext, func(context.Context, *container.Container) (any, error) {
		return tc, nil
	}, container.Scoped)

	h, ok := reg.Get(job.Type)
	if !ok {
		rt.Log.Warnw("no handler for job type", "type", job.Type)
		return
	}
	if err := h(ctx, scope, tc, job); err != nil {
		rt.Log.Errorw("job failed", "type", job.Type, "tenant", tc.TenantKey, "err", err)
		rt.Audit.Write(ctx, audit.Event{
			Kind:      "job.failed",
			RealmKey:  tc.RealmKey,
			TenantKey: tc.TenantKey,
			OrgKey:    tc.OrgKey,
			Detail:    map[string]any{"type": job.Type, "err": err.Error()},
		})
		return
	}
	rt.Audit.Write(ctx, audit.Event{
		Kind:      "job.done",
		RealmKey:  tc.RealmKey,
		TenantKey: tc.TenantKey,
		OrgKey:    tc.OrgKey,
		Detail:    map[string]any{"type": job.Type},
	})
}
