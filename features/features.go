package features

import (
	"regexp"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
)

const maxNameLength = 64

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Flag is a named boolean gate controlling task eligibility.
type Flag struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`

	// DependsOn lists flags that must be enabled before this flag can be.
	DependsOn []string `json:"depends_on,omitempty"`

	// ConflictsWith lists flags that cannot be enabled at the same time.
	ConflictsWith []string `json:"conflicts_with,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager is an immutable registry of feature flags. Enable and Disable
// return a new, fully-validated manager value; no manager instance is ever
// mutated after construction.
type Manager struct {
	flags map[string]Flag
	clock clock.Clock
}

type ManagerOption func(*Manager)

func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// NewManager seeds a manager with the given flags. Flag names are validated;
// enabled flags must already satisfy their dependency and conflict rules.
func NewManager(flags []Flag, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		flags: make(map[string]Flag, len(flags)),
		clock: clock.New(),
	}

	for _, opt := range opts {
		opt(m)
	}

	now := m.clock.Now()

	for _, f := range flags {
		if err := validateName(f.Name); err != nil {
			return nil, err
		}

		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		if f.UpdatedAt.IsZero() {
			f.UpdatedAt = now
		}

		m.flags[f.Name] = f
	}

	// References must resolve within the seeded set.
	for _, f := range m.flags {
		for _, dep := range f.DependsOn {
			if _, ok := m.flags[dep]; !ok {
				return nil, &ErrUnknownFlag{Name: dep}
			}
			if f.Enabled && !m.flags[dep].Enabled {
				return nil, &ErrMissingDependency{Name: f.Name, Dependency: dep}
			}
		}

		for _, c := range f.ConflictsWith {
			if _, ok := m.flags[c]; !ok {
				return nil, &ErrUnknownFlag{Name: c}
			}
			if f.Enabled && m.flags[c].Enabled {
				return nil, &ErrConflict{Name: f.Name, ConflictsWith: c}
			}
		}
	}

	return m, nil
}

func (m *Manager) IsEnabled(name string) bool {
	f, ok := m.flags[name]
	return ok && f.Enabled
}

func (m *Manager) Flag(name string) (Flag, bool) {
	f, ok := m.flags[name]
	return f, ok
}

// EnabledFlags returns the names of all enabled flags, sorted.
func (m *Manager) EnabledFlags() []string {
	var names []string
	for name, f := range m.flags {
		if f.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names
}

// Enable returns a new manager with the given flag enabled. It fails when the
// flag is unknown, one of its dependencies is disabled, or a conflicting flag
// is enabled; the receiver is left unchanged in every case.
func (m *Manager) Enable(name string) (*Manager, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	f, ok := m.flags[name]
	if !ok {
		return nil, &ErrUnknownFlag{Name: name}
	}

	for _, dep := range f.DependsOn {
		if !m.IsEnabled(dep) {
			return nil, &ErrMissingDependency{Name: name, Dependency: dep}
		}
	}

	for _, c := range f.ConflictsWith {
		if m.IsEnabled(c) {
			return nil, &ErrConflict{Name: name, ConflictsWith: c}
		}
	}

	// Conflicts declared on the other side count as well.
	for otherName, other := range m.flags {
		if !other.Enabled {
			continue
		}
		for _, c := range other.ConflictsWith {
			if c == name {
				return nil, &ErrConflict{Name: name, ConflictsWith: otherName}
			}
		}
	}

	f.Enabled = true
	f.UpdatedAt = m.clock.Now()

	return m.with(f), nil
}

// Disable returns a new manager with the given flag disabled. It fails when
// another enabled flag depends on it.
func (m *Manager) Disable(name string) (*Manager, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	f, ok := m.flags[name]
	if !ok {
		return nil, &ErrUnknownFlag{Name: name}
	}

	for otherName, other := range m.flags {
		if !other.Enabled {
			continue
		}
		for _, dep := range other.DependsOn {
			if dep == name {
				return nil, &ErrRequiredBy{Name: name, Dependent: otherName}
			}
		}
	}

	f.Enabled = false
	f.UpdatedAt = m.clock.Now()

	return m.with(f), nil
}

// CheckCompatibility validates that the given flags could all be enabled
// together, without mutating any state.
func (m *Manager) CheckCompatibility(names []string) error {
	enabled := make(map[string]bool, len(names))
	for _, name := range names {
		if err := validateName(name); err != nil {
			return err
		}
		if _, ok := m.flags[name]; !ok {
			return &ErrUnknownFlag{Name: name}
		}
		enabled[name] = true
	}

	for _, name := range names {
		f := m.flags[name]

		for _, dep := range f.DependsOn {
			if !enabled[dep] && !m.IsEnabled(dep) {
				return &ErrMissingDependency{Name: name, Dependency: dep}
			}
		}

		for _, c := range f.ConflictsWith {
			if enabled[c] || m.IsEnabled(c) {
				return &ErrConflict{Name: name, ConflictsWith: c}
			}
		}
	}

	return nil
}

func (m *Manager) with(f Flag) *Manager {
	flags := make(map[string]Flag, len(m.flags))
	for k, v := range m.flags {
		flags[k] = v
	}
	flags[f.Name] = f

	return &Manager{
		flags: flags,
		clock: m.clock,
	}
}

func validateName(name string) error {
	if name == "" {
		return &ErrInvalidName{Name: name, Reason: "name must not be empty"}
	}
	if len(name) > maxNameLength {
		return &ErrInvalidName{Name: name, Reason: "name exceeds maximum length"}
	}
	if !nameRe.MatchString(name) {
		return &ErrInvalidName{Name: name, Reason: "name contains invalid characters"}
	}

	return nil
}
