// Package live carries the out-of-scope live-trading collaborator
// surface of spec.md §4.9/§6: the interface a live Exchange Façade
// would dial out to a real REST/WebSocket exchange client through, plus
// a bounded-budget retry/backoff helper for calling it. No concrete
// client ships here — every real exchange wrapper is explicitly out of
// scope (spec.md §1) — only the contract a `Facade` implementation
// would need and the collaborator-call resilience spec.md §7 requires
// ("retry with backoff up to a bounded budget").
package live

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/matching"
)

// Collaborator is the shape a live Exchange Façade dials out through.
// It mirrors internal/exchange.Facade's order-placement surface but
// drops the bar/fill subscription methods, since a live façade learns
// about bars and fills from its own WebSocket stream rather than from
// the dispatcher's pull-based Source model — wiring that stream back
// into a BacktestingDispatcher-compatible Source is itself out of scope
// (spec.md §1's "live trading execution" Non-goal covers the concrete
// client; only this interface is in scope).
type Collaborator interface {
	PlaceOrder(ctx context.Context, pair market.Pair, side matching.Side, typ matching.Type, amount, price decimal.Decimal) (remoteOrderID string, err error)
	CancelOrder(ctx context.Context, remoteOrderID string) error
	OrderStatus(ctx context.Context, remoteOrderID string) (matching.Status, error)
	Balance(ctx context.Context, symbol string) (decimal.Decimal, error)
}
