package features

import (
	"fmt"
)

type ErrUnknownFlag struct {
	Name string
}

func (e *ErrUnknownFlag) Error() string {
	return fmt.Sprintf("unknown feature flag %q", e.Name)
}

type ErrInvalidName struct {
	Name   string
	Reason string
}

func (e *ErrInvalidName) Error() string {
	return fmt.Sprintf("invalid feature flag name %q: %s", e.Name, e.Reason)
}

// ErrMissingDependency is returned when a flag is enabled while one of its
// declared dependencies is disabled.
type ErrMissingDependency struct {
	Name       string
	Dependency string
}

func (e *ErrMissingDependency) Error() string {
	return fmt.Sprintf("cannot enable %q: dependency %q is not enabled", e.Name, e.Dependency)
}

// ErrConflict is returned when a flag is enabled while a conflicting flag is
// already enabled.
type ErrConflict struct {
	Name          string
	ConflictsWith string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("cannot enable %q: conflicts with enabled flag %q", e.Name, e.ConflictsWith)
}

// ErrRequiredBy is returned when a flag is disabled while another enabled
// flag depends on it.
type ErrRequiredBy struct {
	Name      string
	Dependent string
}

func (e *ErrRequiredBy) Error() string {
	return fmt.Sprintf("cannot disable %q: enabled flag %q depends on it", e.Name, e.Dependent)
}
