// pkg/container/container.go
package container

import (
	"context"
	"fmt"
	"sync"
)

// Token is a stable string key identifying a capability
// (e.g. "adapter.authn", "context.tenant").
type Token string

// CacheMode controls how resolved values are retained.
type CacheMode int

const (
	// Process caches the value on the root container; every scope
	// observes the same instance.
	Process CacheMode = iota
	// Scoped caches the value on the resolving container only.
	Scoped
	// Transient runs the factory on every resolution.
	Transient
)

func (m CacheMode) String() string {
	switch m {
	case Process:
		return "process"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	}
	return fmt.Sprintf("cachemode(%d)", int(m))
}

// Factory constructs a value. It receives the resolving container (which
// may be a request scope), so process-wide adapters can still observe
// ambient scoped values at construction time.
type Factory func(ctx context.Context, c *Container) (any, error)

// DuplicateTokenError indicates a wiring bug: the same token was
// registered twice on one container. Shadowing a parent registration in
// a child scope is allowed and does not trigger this.
type DuplicateTokenError struct {
	Token Token
}

func (e *DuplicateTokenError) Error() string {
	return fmt.Sprintf("container: duplicate registration for token %q", string(e.Token))
}

// UnknownTokenError indicates a wiring bug: the token is not registered
// on the container or any ancestor.
type UnknownTokenError struct {
	Token Token
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("container: no registration for token %q", string(e.Token))
}

type registration struct {
	factory Factory
	mode    CacheMode
}

// Container is a node in a scope tree. Registrations are owned by the
// node they were registered on; lookups walk toward the root. Process
// values live on the root, scoped values on the resolving node.
type Container struct {
	parent *Container
	root   *Container

	regMu sync.RWMutex
	regs  map[Token]registration

	scoped  cache
	process cache // consulted on the root only
}

// New returns a root container.
func New() *Container {
	c := &Container{regs: map[Token]registration{}}
	c.root = c
	c.scoped.init()
	c.process.init()
	return c
}

// CreateScope returns a child container. The child sees all ancestor
// registrations, keeps its own scoped cache, and may shadow ancestor
// tokens with its own registrations. Scopes are created per HTTP
// request, per background job and per scheduled run; dropping the scope
// drops its cache.
func (c *Container) CreateScope() *Container {
	s := &Container{parent: c, root: c.root, regs: map[Token]registration{}}
	s.scoped.init()
	return s
}

// Register adds a factory under the given token. Registering the same
// token twice on one container fails with DuplicateTokenError.
func (c *Container) Register(tok Token, f Factory, mode CacheMode) error {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	if _, exists := c.regs[tok]; exists {
		return &DuplicateTokenError{Token: tok}
	}
	c.regs[tok] = registration{factory: f, mode: mode}
	return nil
}

// MustRegister is Register for boot-time wiring where a duplicate is
// unrecoverable anyway.
func (c *Container) MustRegister(tok Token, f Factory, mode CacheMode) {
	if err := c.Register(tok, f, mode); err != nil {
		panic(err)
	}
}

// Resolve returns the value for tok, constructing it if needed. The
// registration is looked up on this node first, then on ancestors.
// Process values are deduplicated on the root so that concurrent first
// resolutions of one token run its factory exactly once; unrelated
// tokens never wait on each other.
func (c *Container) Resolve(ctx context.Context, tok Token) (any, error) {
	reg, ok := c.lookup(tok)
	if !ok {
		return nil, &UnknownTokenError{Token: tok}
	}
	build := func() (any, error) { return reg.factory(ctx, c) }
	switch reg.mode {
	case Process:
		return c.root.process.resolve(ctx, tok, build)
	case Scoped:
		return c.scoped.resolve(ctx, tok, build)
	default:
		return build()
	}
}

func (c *Container) lookup(tok Token) (registration, bool) {
	for n := c; n != nil; n = n.parent {
		n.regMu.RLock()
		reg, ok := n.regs[tok]
		n.regMu.RUnlock()
		if ok {
			return reg, true
		}
	}
	return registration{}, false
}

// cache is a write-once-per-token value store with in-flight
// deduplication: the first resolver installs a flight record, later
// resolvers wait on it instead of re-running the factory. A failed
// construction is not cached, so a later resolution may retry.
type cache struct {
	mu     sync.Mutex
	vals   map[Token]any
	flight map[Token]*inflight
}

type inflight struct {
	done chan struct{}
	val  any
	err  error
}

func (s *cache) init() {
	s.vals = map[Token]any{}
	s.flight = map[Token]*inflight{}
}

func (s *cache) resolve(ctx context.Context, tok Token, build func() (any, error)) (any, error) {
	s.mu.Lock()
	if v, ok := s.vals[tok]; ok {
		s.mu.Unlock()
		return v, nil
	}
	if fl, ok := s.flight[tok]; ok {
		s.mu.Unlock()
		select {
		case <-fl.done:
			return fl.val, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &inflight{done: make(chan struct{})}
	s.flight[tok] = fl
	s.mu.Unlock()

	fl.val, fl.err = build()
	s.mu.Lock()
	if fl.err == nil {
		s.vals[tok] = fl.val
	}
	delete(s.flight, tok)
	s.mu.Unlock()
	close(fl.done)
	return fl.val, fl.err
}
