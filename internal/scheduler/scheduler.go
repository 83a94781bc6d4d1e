package scheduler

import (
	"context"
	"sync"
	"time"

	"athyper/internal/kernel"
	"athyper/pkg/audit"
	"athyper/pkg/container"
	"athyper/pkg/tenantctx"
)

// TokenTasks is where feature modules contribute scheduled tasks.
const TokenTasks container.Token = "scheduler.tasks"

// Task runs on a fixed interval, each run in a fresh scope with a
// job-path tenant context. Empty keys fall back to configured defaults.
type Task struct {
	Name      string
	Every     time.Duration
	RealmKey  string
	TenantKey string
	OrgKey    string
	Fn        func(ctx context.Context, scope *container.Container, tc *tenantctx.TenantContext) error
}

type Registry struct {
	mu    sync.Mutex
	tasks []Task
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Add(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
}

func (r *Registry) Tasks() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Module wires the task registry into the container.
type Module struct{}

func (Module) Name() string { return "scheduler" }

func (Module) Register(c *container.Container) error {
	return c.Register(TokenTasks, func(context.Context, *container.Container) (any, error) {
		return NewRegistry(), nil
	}, container.Process)
}

func (Module) Contribute(context.Context, *container.Container) error { return nil }

// Runner is the scheduler runtime mode.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

func (*Runner) Name() string { return "scheduler" }

func (s *Runner) Run(ctx context.Context, rt *kernel.Runtime) error {
	tv, err := rt.Container.Resolve(ctx, TokenTasks)
	if err != nil {
		return err
	}
	tasks := tv.(*Registry).Tasks()
	rt.Log.Infow("scheduler running", "tasks", len(tasks))

	var wg sync.WaitGroup
	for _, task := range tasks {
		if task.Every <= 0 {
			rt.Log.Warnw("skipping task with non-positive interval", "task", task.Name, "every", task.Every)
			continue
		}
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			ticker := time.NewTicker(t.Every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.runOnce(ctx, rt, t)
				}
			}
		}(task)
	}
	wg.Wait()
	return nil
}

func (s *Runner) runOnce(ctx context.Context, rt *kernel.Runtime, t Task) {
	scope := rt.Container.CreateScope()
	tc, err := tenantctx.ResolveJob(ctx, rt.Config, tenantctx.Job{
		RealmKey:  t.RealmKey,
		TenantKey: t.TenantKey,
		OrgKey:    t.OrgKey,
	})
	if err != nil {
		rt.Log.Warnw("scheduled run tenant context rejected", "task", t.Name, "err", err)
		return
	}
	scope.MustRegister(kernel.TokenTenantContext, func(context.Context, *container.Container) (any, error) {
		return tc, nil
	}, container.Scoped)
	if err := t.Fn(ctx, scope, tc); err != nil {
		rt.Log.Errorw("scheduled run failed", "task", t.Name, "err", err)
		rt.Audit.Write(ctx, audit.Event{
			Kind:      "schedule.failed",
			RealmKey:  tc.RealmKey,
			TenantKey: tc.TenantKey,
			Detail:    map[string]any{"task": t.Name, "err": err.Error()},
		})
	}
}
