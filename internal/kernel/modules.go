package kernel

import (
	"context"

	"athyper/pkg/container"
)

// Module is a feature module loaded by Bootstrap. Loading is two-phase
// by contract: Register only adds registrations and must not resolve
// tokens; Contribute runs after every module registered and may resolve
// and wire.
type Module interface {
	Name() string
	Register(c *container.Container) error
	Contribute(ctx context.Context, c *container.Container) error
}

// Runner is a runtime mode (api server, worker, scheduler). Run blocks
// until ctx is cancelled or the mode fails.
type Runner interface {
	Name() string
	Run(ctx context.Context, rt *Runtime) error
}
