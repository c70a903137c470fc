package resource

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/spilink/spilink/utils"
)

// Dependencies are the resources a resource depends on, keyed by name.
type Dependencies map[Name]Resource

// Lookup searches for a given dependency by name.
func (d Dependencies) Lookup(name Name) (Resource, error) {
	if res, ok := d[name]; ok {
		return res, nil
	}
	return nil, DependencyNotFoundError(name)
}

// FromDependencies returns the dependency named `name` asserted to `T`.
func FromDependencies[T Resource](deps Dependencies, name Name) (T, error) {
	var zero T
	res, err := deps.Lookup(name)
	if err != nil {
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		return zero, utils.NewUnimplementedInterfaceError[T](res)
	}
	return typed, nil
}

// NewNotFoundError is used when a resource is not found.
func NewNotFoundError(name Name) error {
	return errors.Errorf("resource %q not found", name)
}

// DependencyNotFoundError is used when a resource is not found in a dependencies.
func DependencyNotFoundError(name Name) error {
	return errors.Errorf("%q missing from dependencies", name)
}

// A DependencyNotReadyError is used whenever we reference a dependency that has not been
// constructed yet.
type DependencyNotReadyError struct {
	Name   string
	Reason error
}

func (e *DependencyNotReadyError) Error() string {
	return fmt.Sprintf("dependency %q is not ready yet; reason=%s", e.Name, e.Reason)
}

// Unwrap returns the reason the dependency is not ready.
func (e *DependencyNotReadyError) Unwrap() error {
	return e.Reason
}

// IsDependencyNotReadyError returns if the given error is any kind of dependency not ready error.
func IsDependencyNotReadyError(err error) bool {
	var errArt *DependencyNotReadyError
	return errors.As(err, &errArt)
}
