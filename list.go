package observe

import "slices"

// ObservableList is an observable slice. Each index read while an observer
// is evaluating gets its own observer slot, and the length is tracked
// independently of any element. An index slot can exist before the list
// grows to cover it: reads out of range return the zero value rather than
// panicking, and the slot fires once the index becomes populated.
type ObservableList[T comparable] struct {
	sys     *System
	items   []T
	slots   map[int]*ObserverSet
	lenSlot *ObserverSet
}

// ListOf wraps the given elements in an observable list.
func ListOf[T comparable](s *System, items ...T) *ObservableList[T] {
	return &ObservableList[T]{
		sys:   s,
		items: slices.Clone(items),
		slots: make(map[int]*ObserverSet),
	}
}

func (l *ObservableList[T]) Len() int {
	l.lenSlot = l.sys.NotifyRead(l.lenSlot)
	return len(l.items)
}

// At returns the element at i, or the zero value when i is out of range.
func (l *ObservableList[T]) At(i int) T {
	l.trackSlot(i)
	return l.valueAt(i)
}

// SetAt replaces the element at i. It panics when i is out of range, like a
// slice assignment, and notifies nothing when the value is unchanged.
func (l *ObservableList[T]) SetAt(i int, v T) {
	if l.items[i] == v {
		return
	}
	l.items[i] = v
	l.notifySlot(i)
}

// Append adds elements to the end of the list.
func (l *ObservableList[T]) Append(items ...T) {
	if len(items) == 0 {
		return
	}
	before := l.snapshotTracked()
	l.items = append(l.items, items...)
	l.notifyTrackedChanges(before)
	l.notifyLen()
}

// Insert places v at index i, shifting later elements up.
func (l *ObservableList[T]) Insert(i int, v T) {
	before := l.snapshotTracked()
	l.items = slices.Insert(l.items, i, v)
	l.notifyTrackedChanges(before)
	l.notifyLen()
}

// RemoveAt deletes and returns the element at i, shifting later elements
// down.
func (l *ObservableList[T]) RemoveAt(i int) T {
	removed := l.items[i]
	before := l.snapshotTracked()
	l.items = slices.Delete(l.items, i, i+1)
	l.notifyTrackedChanges(before)
	l.notifyLen()
	return removed
}

// Clear empties the list, notifying every tracked index since any of them
// could be independently observed.
func (l *ObservableList[T]) Clear() {
	if len(l.items) == 0 {
		return
	}
	l.items = nil
	for i := range l.slots {
		l.notifySlot(i)
	}
	l.notifyLen()
}

// ToSlice copies the current contents, tracking the length and every
// present index.
func (l *ObservableList[T]) ToSlice() []T {
	l.lenSlot = l.sys.NotifyRead(l.lenSlot)
	for i := range l.items {
		l.trackSlot(i)
	}
	return slices.Clone(l.items)
}

func (l *ObservableList[T]) valueAt(i int) T {
	if i < 0 || i >= len(l.items) {
		var zero T
		return zero
	}
	return l.items[i]
}

func (l *ObservableList[T]) trackSlot(i int) {
	if updated := l.sys.NotifyRead(l.slots[i]); updated != nil {
		l.slots[i] = updated
	}
}

func (l *ObservableList[T]) notifySlot(i int) {
	if set, ok := l.slots[i]; ok && set != nil {
		l.sys.NotifyWrite(set)
		delete(l.slots, i)
	}
}

func (l *ObservableList[T]) notifyLen() {
	l.lenSlot = l.sys.NotifyWrite(l.lenSlot)
}

// snapshotTracked captures the visible value of every tracked index so a
// shifting mutation can notify exactly the slots whose value changed.
func (l *ObservableList[T]) snapshotTracked() map[int]T {
	if len(l.slots) == 0 {
		return nil
	}
	before := make(map[int]T, len(l.slots))
	for i := range l.slots {
		before[i] = l.valueAt(i)
	}
	return before
}

func (l *ObservableList[T]) notifyTrackedChanges(before map[int]T) {
	for i, old := range before {
		if l.valueAt(i) != old {
			l.notifySlot(i)
		}
	}
}
