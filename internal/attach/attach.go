// Package attach provides a generic single-slot attachment point,
// used to wire optional observers (stats sinks, error loggers) into the
// decoding engine without the engine importing their concrete packages.
package attach

import "errors"

var (
	// ErrTooMany is returned when attaching to a point that already has
	// a component attached.
	ErrTooMany = errors.New("attach: a component is already attached")
	// ErrNotFound is returned when detaching from a point with nothing
	// attached.
	ErrNotFound = errors.New("attach: no component attached")
)

// Notifier is notified whenever a component is attached to or detached
// from a Point.
type Notifier interface {
	AttachNotify(numAttached int)
}

// Point is a generic, single-slot component attachment point. T is the
// interface type being attached (e.g. a StatsSink or a DataSource).
type Point[T any] struct {
	enabled  bool
	attached bool
	notifier Notifier
	comp     T
}

// New creates an enabled attachment point with nothing attached.
func New[T any]() *Point[T] {
	return &Point[T]{enabled: true}
}

// Attach attaches comp to the point. Returns ErrTooMany if something is
// already attached.
func (p *Point[T]) Attach(comp T) error {
	if p.attached {
		return ErrTooMany
	}
	p.comp = comp
	p.attached = true
	if p.notifier != nil {
		p.notifier.AttachNotify(1)
	}
	return nil
}

// Detach removes the attached component, if any.
func (p *Point[T]) Detach() error {
	if !p.attached {
		return ErrNotFound
	}
	var empty T
	p.comp = empty
	p.attached = false
	if p.notifier != nil {
		p.notifier.AttachNotify(0)
	}
	return nil
}

// Replace detaches any existing component and attaches comp.
func (p *Point[T]) Replace(comp T) error {
	if p.attached {
		_ = p.Detach()
	}
	return p.Attach(comp)
}

// SetNotifier installs a Notifier invoked on every Attach/Detach.
func (p *Point[T]) SetNotifier(n Notifier) { p.notifier = n }

// SetEnabled toggles whether Get returns the attached component.
func (p *Point[T]) SetEnabled(enabled bool) { p.enabled = enabled }

// Enabled reports the current enabled state.
func (p *Point[T]) Enabled() bool { return p.enabled }

// Attached reports whether a component is currently attached.
func (p *Point[T]) Attached() bool { return p.attached }

// Get returns the attached component, or the zero value of T if nothing
// is attached or the point is disabled. Callers that need to
// distinguish "disabled" from "nothing attached" should check Attached
// and Enabled directly.
func (p *Point[T]) Get() T {
	if !p.enabled || !p.attached {
		var empty T
		return empty
	}
	return p.comp
}
