package observe

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// ObserverSet is the set of observers currently known to read one piece of
// state. It deliberately has three representations because the empty and
// single-observer cases dominate in practice: a nil *ObserverSet is empty, a
// set with one holds exactly one observer, and many holds two or more.
// Instrumented state stores one *ObserverSet per slot and stores back
// whatever the hooks return.
type ObserverSet struct {
	one  *Observer
	many mapset.Set[*Observer]
}

func (os *ObserverSet) each(fn func(*Observer)) {
	if os == nil {
		return
	}
	if os.many != nil {
		os.many.Each(func(o *Observer) bool {
			fn(o)
			return false
		})
		return
	}
	if os.one != nil {
		fn(os.one)
	}
}

// NotifyRead records that the slot owning obs was read. When an observer is
// currently evaluating it is added to the set; the updated set is returned
// for the caller to store back. Outside of an evaluation this is a no-op.
func (s *System) NotifyRead(obs *ObserverSet) *ObserverSet {
	active := s.active
	if active == nil {
		return obs
	}
	active.wasRead = true
	if obs == nil {
		return &ObserverSet{one: active}
	}
	if obs.many != nil {
		obs.many.Add(active)
		return obs
	}
	if obs.one == active || !obs.one.alive {
		obs.one = active
		return obs
	}
	return &ObserverSet{many: mapset.NewThreadUnsafeSet(obs.one, active)}
}

// NotifyWrite records that the slot owning obs was written. The whole set is
// enqueued for the next flush pass and the empty set is returned; the caller
// must store it back, which is what prevents a second write in the same
// flush window from re-enqueuing work that is already scheduled.
func (s *System) NotifyWrite(obs *ObserverSet) *ObserverSet {
	if obs == nil {
		return nil
	}
	wasEmpty := len(s.pending) == 0
	s.pending = append(s.pending, obs)
	if wasEmpty {
		s.scheduleFlush()
	}
	return nil
}

func (s *System) scheduleFlush() {
	if s.flushScheduled {
		return
	}
	s.flushScheduled = true
	if s.schedule != nil && !s.delivering {
		s.schedule(s.DeliverChangesSync)
	}
}
