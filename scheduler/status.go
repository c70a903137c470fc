package scheduler

import "go.uber.org/atomic"

// Status holds the failed and warning indicators of a component. Both are safe to read from any
// goroutine.
type Status struct {
	failed  atomic.Bool
	warning atomic.Bool
}

// MarkFailed permanently fails the component. A failed component is never looped again.
func (s *Status) MarkFailed() {
	s.failed.Store(true)
}

// IsFailed reports whether the component failed.
func (s *Status) IsFailed() bool {
	return s.failed.Load()
}

// SetWarning raises the warning indicator.
func (s *Status) SetWarning() {
	s.warning.Store(true)
}

// ClearWarning lowers the warning indicator.
func (s *Status) ClearWarning() {
	s.warning.Store(false)
}

// HasWarning reports whether the warning indicator is raised.
func (s *Status) HasWarning() bool {
	return s.warning.Load()
}

// String returns FAILED, WARNING or OK.
func (s *Status) String() string {
	switch {
	case s.IsFailed():
		return "FAILED"
	case s.HasWarning():
		return "WARNING"
	default:
		return "OK"
	}
}
