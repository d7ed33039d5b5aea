package observe

import (
	"fmt"
	"reflect"
)

// ExprFunc is a zero-argument pure read of observable state. Any observable
// value it touches while evaluating becomes a dependency of its observer.
type ExprFunc func() (any, error)

// ChangeFunc is invoked with the previous and freshly computed expression
// values once per flush pass in which they differ.
type ChangeFunc func(oldValue, newValue any) error

// Change is one delivered old/new pair.
type Change struct {
	OldValue any
	NewValue any
}

type noValue struct{}

func (noValue) String() string { return "<no value>" }

// None replaces an observer's value when its expression fails, so the next
// successful evaluation always reads as a change. Callbacks may therefore
// see None as either side of a change around a failed evaluation.
var None any = noValue{}

// Observer is one tracked computation: an expression plus a change callback.
// Observers are created through System.Observe and identified by creation
// order, which is also their delivery order within a flush pass.
type Observer struct {
	sys      *System
	id       uint64
	expr     ExprFunc
	callback ChangeFunc

	lastValue any
	wasRead   bool
	alive     bool
}

// ID is the observer's creation-order identity, as shown in diagnostics.
func (o *Observer) ID() uint64 { return o.id }

// Observe registers expr and runs it once to discover its dependencies.
// The returned function unregisters the observer; it is safe to call at any
// time, including from inside the observer's own callback. If the first
// evaluation read no observable state the observer is discarded immediately
// and a no-op handle is returned, since it can never fire.
func (s *System) Observe(expr ExprFunc, callback ChangeFunc) (unregister func()) {
	s.nextID++
	o := &Observer{
		sys:      s,
		id:       s.nextID,
		expr:     expr,
		callback: callback,
		alive:    true,
	}
	if !o.register() {
		o.unregister()
		return func() {}
	}
	return o.unregister
}

// register evaluates the expression with this observer as the active
// tracking context, saving and restoring the previous context so nested
// registrations behave as a stack. It reports whether anything was read.
func (o *Observer) register() bool {
	prev := o.sys.active
	o.sys.active = o
	o.wasRead = false
	v, err := evaluate(o.expr)
	o.sys.active = prev
	if err != nil {
		o.sys.reportError(o, fmt.Errorf("observed expression: %w", err))
		o.lastValue = None
		return o.wasRead
	}
	o.lastValue = v
	return o.wasRead
}

// deliver re-evaluates the expression, which also re-attaches fresh read
// dependencies, and invokes the callback if the value changed. Dead
// observers and unchanged values produce no notification.
func (o *Observer) deliver() (Change, bool) {
	if !o.alive {
		return Change{}, false
	}
	old := o.lastValue
	o.register()
	if !o.alive {
		return Change{}, false
	}
	same, err := valuesEqual(old, o.lastValue)
	if err != nil {
		o.sys.reportError(o, fmt.Errorf("value comparison: %w", err))
		return Change{}, false
	}
	if same {
		return Change{}, false
	}
	c := Change{OldValue: old, NewValue: o.lastValue}
	if err := deliverCallback(o.callback, c); err != nil {
		o.sys.reportError(o, fmt.Errorf("change callback: %w", err))
	}
	return c, true
}

// unregister marks the observer dead and releases what it holds. Observer
// sets that still reference it are pruned lazily on the next write to the
// state they guard.
func (o *Observer) unregister() {
	if !o.alive {
		return
	}
	o.alive = false
	o.expr = nil
	o.callback = nil
	o.lastValue = nil
}

func evaluate(expr ExprFunc) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return expr()
}

func deliverCallback(fn ChangeFunc, c Change) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if fn == nil {
		return nil
	}
	return fn(c.OldValue, c.NewValue)
}

func valuesEqual(a, b any) (eq bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return reflect.DeepEqual(a, b), nil
}
