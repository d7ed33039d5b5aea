package observe

// ObservableRef is a single observable value.
type ObservableRef[T comparable] struct {
	sys   *System
	value T
	slot  *ObserverSet
}

// Ref wraps an initial value in an observable reference.
func Ref[T comparable](s *System, initial T) *ObservableRef[T] {
	return &ObservableRef[T]{sys: s, value: initial}
}

func (r *ObservableRef[T]) Value() T {
	r.slot = r.sys.NotifyRead(r.slot)
	return r.value
}

// SetValue stores v. Writing the value already held notifies nothing.
func (r *ObservableRef[T]) SetValue(v T) {
	if r.value == v {
		return
	}
	r.value = v
	r.slot = r.sys.NotifyWrite(r.slot)
}
