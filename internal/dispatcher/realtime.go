package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/multiplex"
	"github.com/quantforge/barstream/internal/scheduler"
	"github.com/quantforge/barstream/internal/source"
)

// DefaultPollInterval is used by NewRealtime when no interval is given.
const DefaultPollInterval = 200 * time.Millisecond

// Realtime drives the same subscription contract as Backtesting but
// against the wall clock: producers run concurrently in their own
// goroutines and push into buffered sources; the loop sleeps whenever
// nothing is due (spec.md §4.5).
type Realtime struct {
	base

	mux          *multiplex.Multiplexer
	sched        *scheduler.Queue
	pollInterval time.Duration
	producers    []source.Producer

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRealtime creates a RealtimeDispatcher. A pollInterval of zero uses
// DefaultPollInterval.
func NewRealtime(pollInterval time.Duration) *Realtime {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Realtime{
		mux:          multiplex.New(),
		sched:        scheduler.New(false),
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
	}
}

// RegisterSource adds s to the merged stream, starting its attached
// Producer (if any) only once Run begins.
func (d *Realtime) RegisterSource(s source.Source) {
	d.mux.Register(s)
	if p, ok := s.(source.Producing); ok {
		if prod := p.Producer(); prod != nil {
			d.producers = append(d.producers, prod)
		}
	}
}

// Schedule enqueues cb to run at when. A past when is coerced to run on
// the next loop iteration rather than rejected (spec.md §4.3).
func (d *Realtime) Schedule(when time.Time, cb scheduler.Callback) error {
	return d.sched.Schedule(when, cb)
}

// Stop signals the run loop to exit. Idempotent; safe to call from any
// goroutine, any number of times.
func (d *Realtime) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Run starts every attached Producer, then loops until ctx is canceled
// or Stop is called. On any exit path, every started Producer receives
// Stop (spec.md §4.5 "Cancellation"); pending scheduled callbacks are
// dropped rather than drained.
func (d *Realtime) Run(ctx context.Context) error {
	started, err := startProducers(d.producers)
	defer stopProducers(started)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stopCh:
			log.Info(log.Dispatcher, "stop signal received, exiting realtime loop")
			return nil
		default:
		}

		now := time.Now().UTC()
		tSrc, srcOK := d.mux.PeekWhen()
		tSch, schOK := d.sched.PeekWhen()

		switch {
		case schOK && !tSch.After(now) && (!srcOK || !tSch.After(tSrc)):
			d.sched.SetVirtualNow(now)
			for _, cb := range d.sched.PopDue(now) {
				if err := d.runCallback(cb, now); err != nil {
					return err
				}
			}
		case srcOK && !tSrc.After(now):
			e, _, ok := d.mux.Pop()
			if !ok {
				continue
			}
			d.deliver(ctx, e)
			if d.fatal != nil {
				return d.fatal
			}
		default:
			if waitErr := d.sleepUntil(ctx, earliestWake(now, tSrc, srcOK, tSch, schOK, d.pollInterval)); waitErr != nil {
				return waitErr
			}
		}
	}
}

// earliestWake computes the instant the loop should next wake at: the
// earlier of the next source/scheduler deadline, capped at
// now+pollInterval so a freshly-appended buffered event is never missed
// for longer than one poll (spec.md §4.5).
func earliestWake(now, tSrc time.Time, srcOK bool, tSch time.Time, schOK bool, pollInterval time.Duration) time.Time {
	wake := now.Add(pollInterval)
	if srcOK && tSrc.Before(wake) {
		wake = tSrc
	}
	if schOK && tSch.Before(wake) {
		wake = tSch
	}
	return wake
}

func (d *Realtime) sleepUntil(ctx context.Context, until time.Time) error {
	wait := time.Until(until)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopCh:
		return nil
	case <-timer.C:
		return nil
	}
}
