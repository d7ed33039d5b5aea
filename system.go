// Package observe is a change-notification runtime: plain values, lists,
// maps and sets become observable by routing every read and write through a
// pair of notification hooks, and registered observers are re-evaluated and
// notified in deterministic batches when anything they read has changed.
package observe

import (
	"go.uber.org/zap"
)

// DefaultMaxPasses bounds how many flush passes one delivery session may run
// before the remaining work is treated as a circular notification cycle.
const DefaultMaxPasses = 100

// OnErrorFunc receives every recovered failure: expression errors, callback
// errors and value-comparison errors. from is the observer the failure
// belongs to.
type OnErrorFunc func(from *Observer, err error)

// CircularFunc receives the human-readable diagnostic produced when a
// delivery session exceeds its pass limit.
type CircularFunc func(trace string)

// System owns all state shared by observers created through it: the active
// tracking context, the pending-write queue and the delivery pass counter.
// It is single-threaded by contract; writes never deliver inline, they queue
// work for a later flush on the same goroutine.
type System struct {
	active         *Observer
	pending        []*ObserverSet
	flushScheduled bool
	delivering     bool

	nextID      uint64
	maxPasses   int
	lastChanges map[uint64]Change

	onError    OnErrorFunc
	onCircular CircularFunc
	schedule   func(flush func())
	log        *zap.Logger
}

// CreateSystem builds a system. onError may be nil, in which case failures
// are written to the system's logger instead.
func CreateSystem(onError OnErrorFunc) *System {
	return &System{
		maxPasses: DefaultMaxPasses,
		onError:   onError,
		log:       zap.NewNop(),
	}
}

// SetLogger replaces the diagnostic sink used when no handler is configured.
func (s *System) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	s.log = log
}

// SetOnError replaces the failure handler given at construction.
func (s *System) SetOnError(fn OnErrorFunc) {
	s.onError = fn
}

// SetMaxPasses changes the per-session flush pass limit.
func (s *System) SetMaxPasses(n int) {
	if n < 1 {
		n = 1
	}
	s.maxPasses = n
}

// SetOnCircular installs a handler for the pass-limit diagnostic.
func (s *System) SetOnCircular(fn CircularFunc) {
	s.onCircular = fn
}

// SetScheduler installs the deferred-execution facility. When the pending
// queue goes from empty to non-empty the system hands fn the flush to run on
// a later turn of the host's execution stream. Without a scheduler, delivery
// happens only when DeliverChangesSync is called. At most one flush is
// outstanding at a time either way.
func (s *System) SetScheduler(fn func(flush func())) {
	s.schedule = fn
}

func (s *System) reportError(from *Observer, err error) {
	if s.onError != nil {
		s.onError(from, err)
		return
	}
	if from != nil {
		s.log.Error("observer failure", zap.Uint64("observer", from.id), zap.Error(err))
	} else {
		s.log.Error("observer failure", zap.Error(err))
	}
}
