package observe

// ObservableMap is an observable map with one observer slot per tracked key
// plus a size slot. A key slot can be tracked before the key exists.
type ObservableMap[K comparable, V comparable] struct {
	sys     *System
	items   map[K]V
	slots   map[K]*ObserverSet
	lenSlot *ObserverSet
}

// MapOf wraps a copy of initial (which may be nil) in an observable map.
func MapOf[K comparable, V comparable](s *System, initial map[K]V) *ObservableMap[K, V] {
	items := make(map[K]V, len(initial))
	for k, v := range initial {
		items[k] = v
	}
	return &ObservableMap[K, V]{
		sys:   s,
		items: items,
		slots: make(map[K]*ObserverSet),
	}
}

func (m *ObservableMap[K, V]) Len() int {
	m.lenSlot = m.sys.NotifyRead(m.lenSlot)
	return len(m.items)
}

// Get returns the value for k and whether it is present.
func (m *ObservableMap[K, V]) Get(k K) (V, bool) {
	m.trackSlot(k)
	v, ok := m.items[k]
	return v, ok
}

func (m *ObservableMap[K, V]) Has(k K) bool {
	m.trackSlot(k)
	_, ok := m.items[k]
	return ok
}

// Set stores v under k. Re-setting an unchanged value notifies nothing;
// introducing a new key also notifies the size slot.
func (m *ObservableMap[K, V]) Set(k K, v V) {
	old, existed := m.items[k]
	if existed && old == v {
		return
	}
	m.items[k] = v
	m.notifySlot(k)
	if !existed {
		m.notifyLen()
	}
}

// Delete removes k, reporting whether it was present.
func (m *ObservableMap[K, V]) Delete(k K) bool {
	if _, existed := m.items[k]; !existed {
		return false
	}
	delete(m.items, k)
	m.notifySlot(k)
	m.notifyLen()
	return true
}

// Clear empties the map, notifying every tracked key since any of them
// could be independently observed.
func (m *ObservableMap[K, V]) Clear() {
	if len(m.items) == 0 {
		return
	}
	m.items = make(map[K]V)
	for k := range m.slots {
		m.notifySlot(k)
	}
	m.notifyLen()
}

// Keys returns the current key set in no particular order. Key membership
// is tracked through the size slot, which every add and remove notifies.
func (m *ObservableMap[K, V]) Keys() []K {
	m.lenSlot = m.sys.NotifyRead(m.lenSlot)
	keys := make([]K, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys
}

// ToMap copies the current contents, tracking the size and every present
// key.
func (m *ObservableMap[K, V]) ToMap() map[K]V {
	m.lenSlot = m.sys.NotifyRead(m.lenSlot)
	out := make(map[K]V, len(m.items))
	for k, v := range m.items {
		m.trackSlot(k)
		out[k] = v
	}
	return out
}

func (m *ObservableMap[K, V]) trackSlot(k K) {
	if updated := m.sys.NotifyRead(m.slots[k]); updated != nil {
		m.slots[k] = updated
	}
}

func (m *ObservableMap[K, V]) notifySlot(k K) {
	if set, ok := m.slots[k]; ok && set != nil {
		m.sys.NotifyWrite(set)
		delete(m.slots, k)
	}
}

func (m *ObservableMap[K, V]) notifyLen() {
	m.lenSlot = m.sys.NotifyWrite(m.lenSlot)
}
