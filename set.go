package observe

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// ObservableSet is an observable membership set with one observer slot per
// tracked element plus a cardinality slot.
type ObservableSet[T comparable] struct {
	sys     *System
	items   mapset.Set[T]
	slots   map[T]*ObserverSet
	lenSlot *ObserverSet
}

// SetOf wraps the given elements in an observable set.
func SetOf[T comparable](s *System, items ...T) *ObservableSet[T] {
	return &ObservableSet[T]{
		sys:   s,
		items: mapset.NewThreadUnsafeSet(items...),
		slots: make(map[T]*ObserverSet),
	}
}

func (s *ObservableSet[T]) Len() int {
	s.lenSlot = s.sys.NotifyRead(s.lenSlot)
	return s.items.Cardinality()
}

func (s *ObservableSet[T]) Contains(v T) bool {
	s.trackSlot(v)
	return s.items.Contains(v)
}

// Add inserts v, reporting whether it was absent. Adding a present element
// notifies nothing.
func (s *ObservableSet[T]) Add(v T) bool {
	if s.items.Contains(v) {
		return false
	}
	s.items.Add(v)
	s.notifySlot(v)
	s.notifyLen()
	return true
}

// Remove deletes v, reporting whether it was present.
func (s *ObservableSet[T]) Remove(v T) bool {
	if !s.items.Contains(v) {
		return false
	}
	s.items.Remove(v)
	s.notifySlot(v)
	s.notifyLen()
	return true
}

// Clear empties the set, notifying every tracked element since any of them
// could be independently observed.
func (s *ObservableSet[T]) Clear() {
	if s.items.Cardinality() == 0 {
		return
	}
	s.items.Clear()
	for v := range s.slots {
		s.notifySlot(v)
	}
	s.notifyLen()
}

// ToSlice returns the current elements in no particular order. Membership
// is tracked through the cardinality slot, which every add and remove
// notifies.
func (s *ObservableSet[T]) ToSlice() []T {
	s.lenSlot = s.sys.NotifyRead(s.lenSlot)
	return s.items.ToSlice()
}

func (s *ObservableSet[T]) trackSlot(v T) {
	if updated := s.sys.NotifyRead(s.slots[v]); updated != nil {
		s.slots[v] = updated
	}
}

func (s *ObservableSet[T]) notifySlot(v T) {
	if set, ok := s.slots[v]; ok && set != nil {
		s.sys.NotifyWrite(set)
		delete(s.slots, v)
	}
}

func (s *ObservableSet[T]) notifyLen() {
	s.lenSlot = s.sys.NotifyWrite(s.lenSlot)
}
