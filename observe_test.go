package observe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/watchparty/observe"
)

func failOnError(t *testing.T) observe.OnErrorFunc {
	t.Helper()
	return func(from *observe.Observer, err error) {
		t.Helper()
		assert.FailNow(t, err.Error())
	}
}

// should coalesce any number of writes into a single delivery per flush
func TestCoalescesWritesIntoOneDelivery(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))
	ref := observe.Ref(s, 0)

	var history []observe.Change
	s.Observe(func() (any, error) {
		return ref.Value(), nil
	}, func(oldValue, newValue any) error {
		history = append(history, observe.Change{OldValue: oldValue, NewValue: newValue})
		return nil
	})

	ref.SetValue(1)
	ref.SetValue(2)
	s.DeliverChangesSync()

	assert.Equal(t, []observe.Change{{OldValue: 0, NewValue: 2}}, history)

	s.DeliverChangesSync()
	assert.Len(t, history, 1)
}

// should not notify when a slot is rewritten with the value it already holds
func TestSameValueWriteIsSilent(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))
	ref := observe.Ref(s, 7)

	fired := 0
	s.Observe(func() (any, error) {
		return ref.Value(), nil
	}, func(oldValue, newValue any) error {
		fired++
		return nil
	})

	ref.SetValue(7)
	s.DeliverChangesSync()
	assert.Equal(t, 0, fired)
}

// should deliver to observers in creation order, not write order
func TestDeliversInCreationOrder(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))
	ref := observe.Ref(s, 0)

	var order []string
	s.Observe(func() (any, error) {
		return ref.Value(), nil
	}, func(oldValue, newValue any) error {
		order = append(order, "first")
		return nil
	})
	s.Observe(func() (any, error) {
		return ref.Value(), nil
	}, func(oldValue, newValue any) error {
		order = append(order, "second")
		return nil
	})

	ref.SetValue(1)
	s.DeliverChangesSync()
	assert.Equal(t, []string{"first", "second"}, order)
}

// should never fire an observer unregistered before the pending flush runs
func TestUnregisterBeforeFlush(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))
	ref := observe.Ref(s, 0)

	fired := 0
	unregister := s.Observe(func() (any, error) {
		return ref.Value(), nil
	}, func(oldValue, newValue any) error {
		fired++
		return nil
	})

	ref.SetValue(1)
	unregister()
	s.DeliverChangesSync()
	assert.Equal(t, 0, fired)

	// unregistering again is a no-op, never an error
	unregister()
}

// should discard an observer whose first evaluation reads nothing
func TestObserverReadingNothingNeverFires(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))
	ref := observe.Ref(s, 0)

	fired := 0
	unregister := s.Observe(func() (any, error) {
		return 42, nil
	}, func(oldValue, newValue any) error {
		fired++
		return nil
	})

	ref.SetValue(1)
	s.DeliverChangesSync()
	assert.Equal(t, 0, fired)
	unregister()
}

// should support nested registration without corrupting the tracking context
func TestNestedObserveKeepsTrackingScoped(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))
	outerRef := observe.Ref(s, 0)
	innerRef := observe.Ref(s, 0)

	outerFired, innerFired := 0, 0
	s.Observe(func() (any, error) {
		s.Observe(func() (any, error) {
			return innerRef.Value(), nil
		}, func(oldValue, newValue any) error {
			innerFired++
			return nil
		})
		return outerRef.Value(), nil
	}, func(oldValue, newValue any) error {
		outerFired++
		return nil
	})

	innerRef.SetValue(1)
	s.DeliverChangesSync()
	assert.Equal(t, 1, innerFired)
	assert.Equal(t, 0, outerFired)

	outerFired, innerFired = 0, 0
	outerRef.SetValue(1)
	s.DeliverChangesSync()
	assert.Equal(t, 1, outerFired)
	// re-evaluating the outer expression registers another inner observer;
	// neither may fire for a write the inner reference never saw
	assert.Equal(t, 0, innerFired)
}

// should detect a self-sustaining write cycle within the configured pass
// limit and report exactly one diagnostic
func TestCircularWriteCycleIsBounded(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))
	s.SetMaxPasses(3)

	var traces []string
	s.SetOnCircular(func(trace string) {
		traces = append(traces, trace)
	})

	ref := observe.Ref(s, 0)
	fired := 0
	s.Observe(func() (any, error) {
		return ref.Value(), nil
	}, func(oldValue, newValue any) error {
		fired++
		ref.SetValue(newValue.(int) + 1)
		return nil
	})

	ref.SetValue(1)
	s.DeliverChangesSync()

	assert.Equal(t, 3, fired)
	assert.Len(t, traces, 1)
	assert.Contains(t, traces[0], "did not settle after 3 passes")
	assert.Contains(t, traces[0], "observer #")

	// the pending work was dropped, not retried
	s.DeliverChangesSync()
	assert.Equal(t, 3, fired)
	assert.Len(t, traces, 1)
}

// should batch a reference's writes end to end: two sets, one flush, one
// record from the initial value to the last
func TestReferenceHistoryEndToEnd(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))
	ref := observe.Ref(s, -1)

	var history []observe.Change
	s.Observe(func() (any, error) {
		return ref.Value(), nil
	}, func(oldValue, newValue any) error {
		history = append(history, observe.Change{OldValue: oldValue, NewValue: newValue})
		return nil
	})

	ref.SetValue(1)
	ref.SetValue(2)
	s.DeliverChangesSync()

	assert.Equal(t, []observe.Change{{OldValue: -1, NewValue: 2}}, history)
}

// should notify a map key exactly once for duplicate sets, and not at all
// for an unchanged re-set after the flush
func TestMapDuplicateSetEndToEnd(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))
	m := observe.MapOf[string, int](s, nil)

	var history []observe.Change
	s.Observe(func() (any, error) {
		v, _ := m.Get("a")
		return v, nil
	}, func(oldValue, newValue any) error {
		history = append(history, observe.Change{OldValue: oldValue, NewValue: newValue})
		return nil
	})

	m.Set("a", 5)
	m.Set("a", 5)
	s.DeliverChangesSync()
	assert.Equal(t, []observe.Change{{OldValue: 0, NewValue: 5}}, history)

	m.Set("a", 5)
	s.DeliverChangesSync()
	assert.Len(t, history, 1)
}

// should hand the flush to the configured scheduler at most once per window
func TestSchedulerInvokedOncePerWindow(t *testing.T) {
	s := observe.CreateSystem(failOnError(t))

	var flushes []func()
	s.SetScheduler(func(flush func()) {
		flushes = append(flushes, flush)
	})

	ref := observe.Ref(s, 0)
	fired := 0
	s.Observe(func() (any, error) {
		return ref.Value(), nil
	}, func(oldValue, newValue any) error {
		fired++
		return nil
	})

	ref.SetValue(1)
	ref.SetValue(2)
	assert.Len(t, flushes, 1, "one pending flush at a time")
	assert.Equal(t, 0, fired, "writes never deliver inline")

	flushes[0]()
	assert.Equal(t, 1, fired)

	ref.SetValue(3)
	assert.Len(t, flushes, 2, "a drained queue schedules again")
}
