// Package scheduler implements the SchedulerQueue of spec.md §4.3: a
// min-heap of (when, seq, callback) triples used for timed callbacks,
// with seq breaking ties deterministically. It is new code (the teacher
// has no scheduler — its event queue is a flat, pre-populated slice) but
// follows the teacher's idiom: a plain struct, exported sentinel
// errors from internal/xerrors, and package-level logging through
// internal/log's Scheduler sub-logger.
package scheduler

import (
	"container/heap"
	"time"

	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/xerrors"
)

// Callback is invoked when its scheduled time comes due. It receives the
// instant the scheduler judged it due at, which may be later than the
// time it was scheduled for if the dispatcher was busy. A returned
// error is handled by the dispatcher the same way a handler error is
// (spec.md §7): suppressed and logged, or fatal under strict mode.
type Callback func(due time.Time) error

type entry struct {
	when time.Time
	seq  uint64
	cb   Callback
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is the SchedulerQueue. Not safe for concurrent use; it is only
// ever touched from the dispatcher's single logical task (spec.md §5).
type Queue struct {
	heap        entryHeap
	seq         uint64
	backtesting bool
	virtualNow  time.Time
	hasVirtual  bool
}

// New creates a Queue. When backtesting is true, Schedule rejects any
// `when` strictly before the current virtual clock with ErrPastSchedule
// (spec.md §4.3); the virtual clock is advanced by SetVirtualNow as the
// dispatcher's own clock advances. When backtesting is false (realtime),
// a past `when` is accepted and coerced to "now" on the next PopDue.
func New(backtesting bool) *Queue {
	return &Queue{backtesting: backtesting}
}

// SetVirtualNow advances the backtesting clock the queue validates
// Schedule calls against. Only meaningful when backtesting is true.
func (q *Queue) SetVirtualNow(t time.Time) {
	q.virtualNow = t
	q.hasVirtual = true
}

// Schedule enqueues cb to run at when. Returns ErrPastSchedule in
// backtesting mode if when is strictly before the current virtual clock.
func (q *Queue) Schedule(when time.Time, cb Callback) error {
	if q.backtesting && q.hasVirtual && when.Before(q.virtualNow) {
		log.Warnf(log.Scheduler, "rejecting callback scheduled for %s, virtual clock is at %s", when, q.virtualNow)
		return xerrors.ErrPastSchedule
	}
	q.seq++
	heap.Push(&q.heap, &entry{when: when, seq: q.seq, cb: cb})
	return nil
}

// PeekWhen returns the earliest scheduled time, or false if the queue is
// empty.
func (q *Queue) PeekWhen() (time.Time, bool) {
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].when, true
}

// PopDue removes and returns every callback due at or before now, in
// (when, seq) order — the same order they will be invoked in by the
// caller (the dispatcher runs them to completion, in order, per
// spec.md §4.4 step 5).
func (q *Queue) PopDue(now time.Time) []Callback {
	var due []Callback
	for len(q.heap) > 0 && !q.heap[0].when.After(now) {
		e := heap.Pop(&q.heap).(*entry)
		due = append(due, e.cb)
	}
	return due
}

// Len reports the number of pending callbacks.
func (q *Queue) Len() int { return len(q.heap) }
