package kernel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"athyper/pkg/audit"
	"athyper/pkg/authn"
	"athyper/pkg/config"
	"athyper/pkg/container"
	"athyper/pkg/logger"
	"athyper/pkg/secrets"
	"athyper/pkg/tenantctx"
)

// Options selects what one process boots.
type Options struct {
	ConfigPath string
	Mode       string
	Modules    []Module
	Runners    map[string]Runner
	Secrets    secrets.Resolver // defaults to env-backed resolution
}

// Runtime is the booted kernel: root container, lifecycle and the
// selected runtime mode, ready to Run.
type Runtime struct {
	Config    *config.Config
	Log       *zap.SugaredLogger
	Container *container.Container
	Lifecycle *container.Lifecycle
	Audit     audit.Writer

	runner Runner
}

// Bootstrap walks the fixed startup sequence: load+validate config,
// create the container, register kernel defaults, install signal
// handlers, load modules, select the runtime mode. The first failing
// stage aborts the boot; the caller maps the error to an exit code via
// Classify.
func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	if opts.Secrets == nil {
		opts.Secrets = secrets.Env{}
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg, opts.Secrets); err != nil {
		return nil, err
	}
	log := logger.New(cfg.Env)
	log.Infow("config loaded", "env", cfg.Env, "realms", strings.Join(cfg.RealmKeys(), ","))

	root := container.New()
	lc := container.NewLifecycle(log)

	rt := &Runtime{Config: cfg, Log: log, Container: root, Lifecycle: lc}
	if err := rt.registerKernelDefaults(opts.Secrets); err != nil {
		return nil, err
	}
	// Fail fast on a broken default partition; each validation kind
	// keeps its own exit code.
	if _, err := tenantctx.ResolveJob(ctx, cfg, tenantctx.Job{}); err != nil {
		return nil, err
	}
	log.Infow("kernel defaults registered")

	InstallSignalHandlers(lc, log, cfg.ShutdownTimeout())

	rt.Audit = rt.resolveAudit(ctx)
	rt.auditBoot(ctx, "boot.modules", map[string]any{"count": len(opts.Modules)})

	for _, m := range opts.Modules {
		if err := m.Register(root); err != nil {
			return nil, fmt.Errorf("module %s register: %w", m.Name(), err)
		}
	}
	for _, m := range opts.Modules {
		if err := m.Contribute(ctx, root); err != nil {
			return nil, fmt.Errorf("module %s contribute: %w", m.Name(), err)
		}
	}
	log.Infow("modules loaded", "count", len(opts.Modules))

	runner, ok := opts.Runners[opts.Mode]
	if !ok {
		return nil, fmt.Errorf("kernel: unknown runtime mode %q", opts.Mode)
	}
	rt.runner = runner
	return rt, nil
}

// Run starts the selected runtime mode and blocks until it stops. The
// mode observes shutdown through its context, cancelled by the
// lifecycle hook registered here.
func (r *Runtime) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.Lifecycle.OnShutdown("kernel.mode", func(context.Context) error {
		cancel()
		return nil
	})
	r.auditBoot(runCtx, "boot.mode", map[string]any{"mode": r.runner.Name()})
	r.Log.Infow("mode started", "mode", r.runner.Name())
	return r.runner.Run(runCtx, r)
}

// Shutdown runs the ordered shutdown, bounded by the configured stop
// timeout.
func (r *Runtime) Shutdown(reason string) {
	shutdownWithTimeout(r.Lifecycle, r.Log, r.Config.ShutdownTimeout(), reason)
}

func (r *Runtime) registerKernelDefaults(sec secrets.Resolver) error {
	root, cfg, log, lc := r.Container, r.Config, r.Log, r.Lifecycle

	regs := []struct {
		tok  container.Token
		f    container.Factory
		mode container.CacheMode
	}{
		{TokenConfig, func(context.Context, *container.Container) (any, error) { return cfg, nil }, container.Process},
		{TokenLogger, func(context.Context, *container.Container) (any, error) { return log, nil }, container.Process},
		{TokenLifecycle, func(context.Context, *container.Container) (any, error) { return lc, nil }, container.Process},
		{TokenSecrets, func(context.Context, *container.Container) (any, error) { return sec, nil }, container.Process},

		{TokenPostgres, func(ctx context.Context, _ *container.Container) (any, error) {
			if cfg.DatabaseURL == "" {
				return nil, fmt.Errorf("kernel: DATABASE_URL not configured")
			}
			pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("pg connect: %w", err)
			}
			if err := pool.Ping(ctx); err != nil {
				return nil, fmt.Errorf("pg ping: %w", err)
			}
			lc.OnShutdown("adapter.postgres", func(context.Context) error {
				pool.Close()
				return nil
			})
			log.Infow("postgres ready", "dsn", redactDSN(cfg.DatabaseURL))
			return pool, nil
		}, container.Process},

		{TokenRedis, func(ctx context.Context, _ *container.Container) (any, error) {
			if cfg.RedisURL == "" {
				return nil, fmt.Errorf("kernel: REDIS_URL not configured")
			}
			ropts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("redis parse: %w", err)
			}
			cli := redis.NewClient(ropts)
			if err := cli.Ping(ctx).Err(); err != nil {
				return nil, fmt.Errorf("redis ping: %w", err)
			}
			lc.OnShutdown("adapter.redis", func(context.Context) error { return cli.Close() })
			log.Infow("redis ready", "addr", ropts.Addr)
			return cli, nil
		}, container.Process},

		{TokenAudit, func(ctx context.Context, c *container.Container) (any, error) {
			if cfg.DatabaseURL == "" {
				return &audit.ZapWriter{Log: log}, nil
			}
			v, err := c.Resolve(ctx, TokenPostgres)
			if err != nil {
				return nil, err
			}
			pool := v.(*pgxpool.Pool)
			if err := audit.EnsureSchema(ctx, pool); err != nil {
				return nil, fmt.Errorf("audit schema: %w", err)
			}
			return audit.NewPGWriter(pool, log), nil
		}, container.Process},

		{TokenVerifiers, func(context.Context, *container.Container) (any, error) {
			return authn.NewVerifiers(cfg, sec, log), nil
		}, container.Process},

		{TokenPipeline, func(ctx context.Context, c *container.Container) (any, error) {
			v, err := c.Resolve(ctx, TokenVerifiers)
			if err != nil {
				return nil, err
			}
			return authn.NewPipeline(v.(*authn.Verifiers)), nil
		}, container.Process},
	}
	for _, reg := range regs {
		if err := root.Register(reg.tok, reg.f, reg.mode); err != nil {
			return err
		}
	}
	return nil
}

// resolveAudit never fails the boot: a broken audit backend degrades
// to the process log.
func (r *Runtime) resolveAudit(ctx context.Context) audit.Writer {
	v, err := r.Container.Resolve(ctx, TokenAudit)
	if err != nil {
		r.Log.Warnw("audit writer unavailable, falling back to log", "err", err)
		return &audit.ZapWriter{Log: r.Log}
	}
	return v.(audit.Writer)
}

func (r *Runtime) auditBoot(ctx context.Context, kind string, detail map[string]any) {
	if r.Audit == nil {
		return
	}
	r.Audit.Write(ctx, audit.Event{Time: time.Now(), Kind: kind, Detail: detail})
}

func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "@"); i > 0 {
		return "***@" + dsn[i+1:]
	}
	return dsn
}
