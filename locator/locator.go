package locator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/relkit/go-release/taskerrors"
)

// Registration declares a named service and how to build it. The factory
// receives a Resolver for the base path and the services the registration
// declared as dependencies.
type Registration struct {
	Name string

	// DependsOn lists services the factory may request from the resolver.
	DependsOn []string

	Factory func(r *Resolver) (any, error)
}

// Locator resolves named collaborator services on demand. Construction is
// deferred until a handle's first Instance call and memoized per locator, so
// a declared-but-unused service never pays its initialization cost or risks
// its failure.
type Locator struct {
	mu sync.Mutex

	basePath      string
	registrations map[string]Registration
	built         map[string]*built
}

type built struct {
	instance any
	err      error
}

type Option func(*Locator)

// WithBasePath sets the base path handed to service factories.
func WithBasePath(path string) Option {
	return func(l *Locator) {
		l.basePath = path
	}
}

func New(registrations []Registration, opts ...Option) (*Locator, error) {
	l := &Locator{
		registrations: make(map[string]Registration, len(registrations)),
		built:         make(map[string]*built),
	}

	for _, opt := range opts {
		opt(l)
	}

	for _, reg := range registrations {
		if reg.Name == "" {
			return nil, taskerrors.New(taskerrors.Validation, "service name must not be empty")
		}
		if reg.Factory == nil {
			return nil, taskerrors.Newf(taskerrors.Validation, "service %q has no factory", reg.Name)
		}
		if _, ok := l.registrations[reg.Name]; ok {
			return nil, taskerrors.Newf(taskerrors.Conflict, "service %q already registered", reg.Name)
		}

		l.registrations[reg.Name] = reg
	}

	return l, nil
}

// Resolve returns handles for the given services. The services are not
// constructed yet; construction happens on a handle's first Instance call.
// Unknown names fail immediately.
func (l *Locator) Resolve(names ...string) ([]*Handle, error) {
	handles := make([]*Handle, len(names))
	for i, name := range names {
		if _, ok := l.registrations[name]; !ok {
			return nil, taskerrors.Newf(taskerrors.NotFound, "service %q not registered", name)
		}

		handles[i] = &Handle{name: name, locator: l}
	}

	return handles, nil
}

// Handle is a deferred reference to a service. The service is built on the
// first Instance call; subsequent calls return the same instance. Handles for
// the same name share the memoized instance through their locator.
type Handle struct {
	name    string
	locator *Locator
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Instance() (any, error) {
	return h.locator.instance(h.name, nil)
}

// Service resolves and builds the named service directly.
func (l *Locator) Service(name string) (any, error) {
	return l.instance(name, nil)
}

// instance returns the memoized service instance, building it first if
// necessary. resolving is the chain of services currently under construction,
// used to detect circular service dependencies.
func (l *Locator) instance(name string, resolving []string) (any, error) {
	reg, ok := l.registrations[name]
	if !ok {
		return nil, taskerrors.Newf(taskerrors.NotFound, "service %q not registered", name)
	}

	for _, r := range resolving {
		if r == name {
			chain := append(append([]string(nil), resolving...), name)
			return nil, taskerrors.Newf(taskerrors.Validation,
				"circular service dependency: %s", strings.Join(chain, " -> "))
		}
	}

	l.mu.Lock()
	if b, ok := l.built[name]; ok {
		l.mu.Unlock()
		return b.instance, b.err
	}
	l.mu.Unlock()

	resolver := &Resolver{
		locator:   l,
		reg:       reg,
		resolving: append(append([]string(nil), resolving...), name),
	}

	instance, err := reg.Factory(resolver)
	if err != nil {
		err = taskerrors.Wrap(taskerrors.Failed, fmt.Errorf("building service %q: %w", name, err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// A transitive resolution may have built this service in the meantime,
	// keep the first result.
	if b, ok := l.built[name]; ok {
		return b.instance, b.err
	}

	l.built[name] = &built{instance: instance, err: err}

	return instance, err
}

// Resolver is handed to a service factory during construction. It exposes the
// base path and the services the registration declared as dependencies.
type Resolver struct {
	locator   *Locator
	reg       Registration
	resolving []string
}

func (r *Resolver) BasePath() string {
	return r.locator.basePath
}

// Service builds and returns a dependency. Only services declared in the
// registration's DependsOn list may be requested.
func (r *Resolver) Service(name string) (any, error) {
	declared := false
	for _, dep := range r.reg.DependsOn {
		if dep == name {
			declared = true
			break
		}
	}
	if !declared {
		return nil, taskerrors.Newf(taskerrors.Validation,
			"service %q did not declare a dependency on %q", r.reg.Name, name)
	}

	return r.locator.instance(name, r.resolving)
}
