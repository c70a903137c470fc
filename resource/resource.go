// Package resource contains the naming, configuration and registration of every spilink component.
package resource

import "context"

// A Resource is the basis for all components. Each resource knows its name and can be closed.
type Resource interface {
	Name() Name

	// Close must safely shut down the resource and prevent further use.
	// Close must be idempotent.
	Close(ctx context.Context) error
}

// Named is to be embedded by any resource that just needs to return a name.
type Named interface {
	Name() Name
	DoNotImplement()
}

// TriviallyCloseable is to be embedded by any resource that does not care about handling Closes.
type TriviallyCloseable struct{}

// Close always returns no error.
func (t TriviallyCloseable) Close(ctx context.Context) error {
	return nil
}
