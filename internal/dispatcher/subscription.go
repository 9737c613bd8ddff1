// Package dispatcher implements the BacktestingDispatcher and
// RealtimeDispatcher of spec.md §4.4/§4.5: the reactor that drives
// producers, the multiplexer, the scheduler and subscriber dispatch.
// New code — the teacher's backtest.go is a simple eventLoop type
// switch over a flat queue with no independent sources, no scheduler,
// and no realtime twin — but the subscription table follows spec.md §9
// ("Dynamic dispatch on Event... subscribers register against the tag;
// delivery is an O(1) table lookup" — here a short linear scan, since
// subscriber counts per run are small and registration order matters
// more than raw lookup cost).
package dispatcher

import (
	"context"
	"fmt"

	"github.com/quantforge/barstream/internal/event"
	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/xerrors"
)

// Handler is a subscriber callback. It may suspend (block) for as long
// as it needs; the dispatcher does not advance its clock or dispatch
// another event until Handler returns (spec.md §4.4 "Suspension").
// Its return value is an error rather than spec.md's "ignored" return,
// since Go has no sensible way to ignore an error from a call — callers
// that truly want silence return nil.
type Handler func(ctx context.Context, e event.Event) error

type subscription struct {
	seq      uint64
	kind     event.Kind
	byKind   bool
	sourceID uint64
	bySource bool
	handler  Handler
}

func (s subscription) matches(e event.Event) bool {
	if s.byKind && s.kind == e.Kind() {
		return true
	}
	if s.bySource && s.sourceID == e.SourceID() {
		return true
	}
	return false
}

// base is embedded by BacktestingDispatcher and RealtimeDispatcher. It
// owns the subscription table and the strict/fatal error policy of
// spec.md §7 ("Handler errors... suppressed. A strict-mode flag
// converts them to fatal").
type base struct {
	subs    []subscription
	nextSeq uint64
	strict  bool
	fatal   error
}

// Subscribe registers h to run on every event whose Kind matches k, in
// the order Subscribe/SubscribeSource calls were made (spec.md §4.4
// step 6, "registration order").
func (b *base) Subscribe(k event.Kind, h Handler) {
	b.nextSeq++
	b.subs = append(b.subs, subscription{seq: b.nextSeq, kind: k, byKind: true, handler: h})
}

// SubscribeSource registers h to run on every event produced by the
// source identified by sourceID, regardless of Kind.
func (b *base) SubscribeSource(sourceID uint64, h Handler) {
	b.nextSeq++
	b.subs = append(b.subs, subscription{seq: b.nextSeq, sourceID: sourceID, bySource: true, handler: h})
}

// SetStrict toggles whether handler errors are fatal (true) or
// suppressed-and-logged (false, the default).
func (b *base) SetStrict(strict bool) { b.strict = strict }

// deliver runs every matching subscriber for e, in registration order,
// stopping early if strict mode turns a handler error into a fatal one.
func (b *base) deliver(ctx context.Context, e event.Event) {
	for _, sub := range b.subs {
		if !sub.matches(e) {
			continue
		}
		if err := b.invoke(ctx, sub.handler, e); err != nil {
			b.fatal = err
			return
		}
	}
}

// invoke calls h, recovering from panics and converting both panics and
// returned errors into the suppress-and-log or fatal outcome spec.md §7
// describes. It returns a non-nil error only when strict mode is set
// and the handler failed — the caller is expected to treat that as
// terminal.
func (b *base) invoke(ctx context.Context, h Handler, e event.Event) (fatalErr error) {
	defer func() {
		if r := recover(); r != nil {
			fatalErr = b.onHandlerError(fmt.Errorf("handler panicked: %v", r), e)
		}
	}()
	if err := h(ctx, e); err != nil {
		return b.onHandlerError(err, e)
	}
	return nil
}

func (b *base) onHandlerError(err error, e event.Event) error {
	log.Errorf(log.Dispatcher, "handler error for kind=%s source=%d when=%s: %v", e.Kind(), e.SourceID(), e.When(), err)
	if !b.strict {
		return nil
	}
	return xerrors.NewFatal("handler-error", err, map[string]any{
		"kind": string(e.Kind()), "source_id": e.SourceID(), "when": e.When(),
	})
}

