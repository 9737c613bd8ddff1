// Package matching implements the OrderManager of spec.md §4.6: the
// backtesting matching engine that owns orders, drives their state
// machine, and settles fills against AccountBalances. Grounded on
// thrasher-corp/gocryptotrader/backtester/eventhandlers/exchange
// (ExecuteOrder's size-against-the-bar, fee-and-slippage settlement
// flow) and exchanges/order's Side/Type/Status vocabulary, reworked
// from single-fill-per-bar-per-order to the multi-order,
// shared-liquidity-bucket matcher spec.md §4.6 describes.
package matching

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/market"
)

// Side is the direction of an order, grounded on exchanges/order.Side's
// Buy/Sell constants.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Type is the order type, grounded on exchanges/order.Type's
// Market/Limit constants, extended with StopLimit per spec.md §4.6.
type Type string

const (
	Market    Type = "MARKET"
	Limit     Type = "LIMIT"
	StopLimit Type = "STOP_LIMIT"
)

// Status is a state in the order state machine of spec.md §4.6:
// NEW → OPEN → (PARTIALLY_FILLED)* → FILLED | CANCELED | REJECTED, with
// stop-limit orders passing through PENDING_TRIGGER before OPEN.
type Status string

const (
	New             Status = "NEW"
	PendingTrigger  Status = "PENDING_TRIGGER"
	Open            Status = "OPEN"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Filled          Status = "FILLED"
	Canceled        Status = "CANCELED"
	Rejected        Status = "REJECTED"
)

// IsTerminal reports whether s is one of the absorbing states.
func (s Status) IsTerminal() bool {
	return s == Filled || s == Canceled || s == Rejected
}

func isActive(s Status) bool {
	return s == Open || s == PartiallyFilled
}

// Order is one resting or historical order owned by a Manager.
type Order struct {
	ID     uint64
	Seq    uint64 // creation sequence, breaks price-priority ties (spec.md §4.6 "Tie-breaks")
	Pair   market.Pair
	Side   Side
	Type   Type
	Amount decimal.Decimal // original requested amount

	Remaining  decimal.Decimal
	LimitPrice decimal.Decimal // zero for Market
	StopPrice  decimal.Decimal // zero unless Type == StopLimit

	Status       Status
	RejectReason string
	CreatedAt    time.Time

	heldSymbol   string
	heldAmount   decimal.Decimal
	heldConsumed decimal.Decimal

	triggeredThisBar bool
}

// FilledAmount returns Amount − Remaining.
func (o Order) FilledAmount() decimal.Decimal {
	return o.Amount.Sub(o.Remaining)
}

// Fill is one execution against an Order, emitted in the order they
// occurred inside a single MatchBar call (spec.md §5, "Within a fill
// sequence for one order, fills are emitted in the order they occurred
// inside the matching step").
type Fill struct {
	OrderID   uint64
	Pair      market.Pair
	Side      Side
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Fee       decimal.Decimal
	FeeSymbol string
	Maker     bool
	When      time.Time
}
