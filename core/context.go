package core

import (
	"time"

	"github.com/relkit/go-release/taskerrors"
)

// Context is the immutable execution context threaded through every task.
//
// A Context value is never mutated after construction. Fork and ForkMultiple
// return a new Context whose data mapping overlays the update; the original
// remains valid and unchanged. A read always reflects a single consistent
// snapshot, so no task can observe a partially-applied update from another
// task.
type Context struct {
	run       *Run
	startedAt time.Time
	config    map[string]any
	data      map[string]any
	version   int
}

// NewContext creates the initial context for a run. The config mapping is
// copied, it stays read-only for the lifetime of the run.
func NewContext(run *Run, startedAt time.Time, config map[string]any) *Context {
	cfg := make(map[string]any, len(config))
	for k, v := range config {
		cfg[k] = v
	}

	return &Context{
		run:       run,
		startedAt: startedAt,
		config:    cfg,
		data:      map[string]any{},
	}
}

func (c *Context) Run() *Run {
	return c.run
}

func (c *Context) StartedAt() time.Time {
	return c.startedAt
}

// Config returns the configuration value for the given key.
func (c *Context) Config(key string) (any, bool) {
	v, ok := c.config[key]
	return v, ok
}

// Get returns the data value for the given key. It fails with a NotFound
// error when the key is absent.
func (c *Context) Get(key string) (any, error) {
	v, ok := c.data[key]
	if !ok {
		return nil, taskerrors.Newf(taskerrors.NotFound, "context key %q not found", key)
	}

	return v, nil
}

func (c *Context) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Fork returns a new context with the given key set. The receiver is left
// untouched.
func (c *Context) Fork(key string, value any) *Context {
	return c.ForkMultiple(map[string]any{key: value})
}

// ForkMultiple returns a new context with all given updates applied as a
// single consistent overlay.
func (c *Context) ForkMultiple(updates map[string]any) *Context {
	data := make(map[string]any, len(c.data)+len(updates))
	for k, v := range c.data {
		data[k] = v
	}
	for k, v := range updates {
		data[k] = v
	}

	return &Context{
		run:       c.run,
		startedAt: c.startedAt,
		config:    c.config,
		data:      data,
		version:   c.version + 1,
	}
}

// Snapshot returns a copy of the current data mapping. Mutating the returned
// map does not affect the context.
func (c *Context) Snapshot() map[string]any {
	data := make(map[string]any, len(c.data))
	for k, v := range c.data {
		data[k] = v
	}

	return data
}

// Version returns the number of forks this context is removed from the
// initial context of its run.
func (c *Context) Version() int {
	return c.version
}
