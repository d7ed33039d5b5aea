package observe

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// circularSampleSize caps how many observers the circular diagnostic names.
const circularSampleSize = 10

// DeliverChangesSync drains the pending-write queue. Each flush pass swaps
// the queue out, flattens it into at most one entry per still-alive
// observer, and delivers in ascending creation order; callbacks may enqueue
// new writes, which start another pass. A session that runs more passes than
// the configured limit is reported as a circular notification cycle and its
// remaining work is discarded.
func (s *System) DeliverChangesSync() {
	if s.delivering {
		return
	}
	s.delivering = true
	defer func() {
		s.delivering = false
		s.flushScheduled = false
		s.lastChanges = nil
	}()

	passes := 0
	for len(s.pending) > 0 {
		passes++
		if passes > s.maxPasses {
			s.reportCircular()
			s.pending = nil
			return
		}

		queued := s.pending
		s.pending = nil

		byID := make(map[uint64]*Observer, len(queued))
		for _, set := range queued {
			set.each(func(o *Observer) {
				if o.alive {
					byID[o.id] = o
				}
			})
		}

		ids := make([]uint64, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for _, id := range ids {
			if c, delivered := byID[id].deliver(); delivered {
				if s.lastChanges == nil {
					s.lastChanges = make(map[uint64]Change)
				}
				s.lastChanges[id] = c
			}
		}
	}
}

// reportCircular summarizes the observers still pending when the pass limit
// tripped, with the latest change each one delivered in this session.
func (s *System) reportCircular() {
	var b strings.Builder
	fmt.Fprintf(&b, "change delivery did not settle after %d passes, dropping pending notifications\n", s.maxPasses)

	seen := make(map[uint64]bool)
	sampled := 0
	for _, set := range s.pending {
		set.each(func(o *Observer) {
			if !o.alive || seen[o.id] || sampled >= circularSampleSize {
				return
			}
			seen[o.id] = true
			sampled++
			if c, ok := s.lastChanges[o.id]; ok {
				fmt.Fprintf(&b, "  observer #%d: %v => %v\n", o.id, c.OldValue, c.NewValue)
			} else {
				fmt.Fprintf(&b, "  observer #%d\n", o.id)
			}
		})
	}

	trace := b.String()
	if s.onCircular != nil {
		s.onCircular(trace)
		return
	}
	s.log.Warn("circular change delivery", zap.String("trace", trace))
}
