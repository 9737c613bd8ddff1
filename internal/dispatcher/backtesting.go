package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/multiplex"
	"github.com/quantforge/barstream/internal/scheduler"
	"github.com/quantforge/barstream/internal/source"
)

// Backtesting drives a deterministic, chronological merge of sources
// against a virtual clock equal to the event clock (spec.md §4.4).
type Backtesting struct {
	base

	mux       *multiplex.Multiplexer
	sched     *scheduler.Queue
	clock     time.Time
	hasClock  bool
	producers []source.Producer
}

// NewBacktesting creates a BacktestingDispatcher with an empty source
// set and scheduler.
func NewBacktesting() *Backtesting {
	return &Backtesting{
		mux:   multiplex.New(),
		sched: scheduler.New(true),
	}
}

// RegisterSource adds s to the merged stream. If s also exposes an
// attached Producer (source.Producing), that Producer is started when
// Run begins and stopped on every exit path.
func (d *Backtesting) RegisterSource(s source.Source) {
	d.mux.Register(s)
	if p, ok := s.(source.Producing); ok {
		if prod := p.Producer(); prod != nil {
			d.producers = append(d.producers, prod)
		}
	}
}

// Schedule enqueues cb to run at when. Returns xerrors.ErrPastSchedule
// if when is strictly before the current virtual clock (spec.md §4.3).
func (d *Backtesting) Schedule(when time.Time, cb scheduler.Callback) error {
	return d.sched.Schedule(when, cb)
}

// Now returns the dispatcher's virtual clock. hasRun is false before the
// first Run iteration advances it.
func (d *Backtesting) Now() (t time.Time, hasRun bool) { return d.clock, d.hasClock }

// Run drives the reactor loop of spec.md §4.4 to completion (EXHAUSTED)
// or until ctx is canceled. Every Producer attached to a registered
// source is started before the loop begins and stopped, in the scoped
// manner spec.md §4.1 requires, on every exit path.
func (d *Backtesting) Run(ctx context.Context) error {
	started, err := startProducers(d.producers)
	defer stopProducers(started)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tSrc, srcOK := d.mux.PeekWhen()
		tSch, schOK := d.sched.PeekWhen()

		if !srcOK && !schOK {
			log.Debug(log.Dispatcher, "multiplexer and scheduler both empty, run complete")
			return nil
		}

		var useScheduler bool
		var when time.Time
		switch {
		case schOK && srcOK:
			// Scheduler wins ties: a callback due at exactly tSrc runs
			// before the event at tSrc (spec.md §4.4 step 3).
			if !tSch.After(tSrc) {
				useScheduler, when = true, tSch
			} else {
				when = tSrc
			}
		case schOK:
			useScheduler, when = true, tSch
		default:
			when = tSrc
		}

		if d.hasClock && when.Before(d.clock) {
			return fmt.Errorf("dispatcher: virtual clock moved backwards from %s to %s", d.clock, when)
		}
		d.clock = when
		d.hasClock = true
		d.sched.SetVirtualNow(when)

		if useScheduler {
			for _, cb := range d.sched.PopDue(when) {
				if err := d.runCallback(cb, when); err != nil {
					return err
				}
			}
			continue
		}

		e, _, ok := d.mux.Pop()
		if !ok {
			continue
		}
		d.deliver(ctx, e)
		if d.fatal != nil {
			return d.fatal
		}
	}
}

func startProducers(producers []source.Producer) ([]source.Producer, error) {
	started := make([]source.Producer, 0, len(producers))
	for _, p := range producers {
		if err := p.Start(); err != nil {
			return started, fmt.Errorf("dispatcher: starting producer: %w", err)
		}
		started = append(started, p)
	}
	return started, nil
}

func stopProducers(producers []source.Producer) {
	for _, p := range producers {
		if err := p.Stop(); err != nil {
			log.Errorf(log.Dispatcher, "stopping producer: %v", err)
		}
	}
}
