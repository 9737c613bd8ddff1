// Package exchange implements the Exchange Façade of spec.md §4.9: the
// uniform order/trading surface strategies consume, regardless of
// whether they are running against history or a live venue. Grounded
// on thrasher-corp/gocryptotrader/backtester/eventhandlers/exchange's
// role as the single point strategies submit orders through, trimmed
// to an interface both the backtesting and (out-of-scope) live façades
// satisfy.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/balance"
	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/matching"
)

// BarHandler receives bar events a strategy subscribed to. It may
// suspend (block) for as long as it needs (spec.md §4.9, "All are
// suspension-capable") — in Go, an ordinary blocking call already has
// that property.
type BarHandler func(ctx context.Context, b bar.Bar) error

// FillHandler receives fills produced by orders the caller placed.
// Not part of spec.md's literal method list, but a natural extension
// of "suspension-capable" subscription since a strategy otherwise has
// no way to learn about a fill except polling GetOrderInfo every bar.
type FillHandler func(ctx context.Context, f matching.Fill) error

// Facade is the uniform surface of spec.md §4.9, satisfied by both the
// backtesting façade (routes to OrderManager) and the live façade
// (routes to REST/WebSocket collaborators, out of scope here). Both are
// interchangeable by contract: a strategy written against Facade never
// knows which implementation it is driving.
type Facade interface {
	// SubscribeToBarEvents registers handler to run on every bar for
	// pair/period. handler execution itself may suspend.
	SubscribeToBarEvents(pair market.Pair, period time.Duration, handler BarHandler) error
	// SubscribeToFills registers handler to run on every fill produced
	// by an order this façade placed, for pair.
	SubscribeToFills(pair market.Pair, handler FillHandler) error

	CreateMarketOrder(pair market.Pair, side matching.Side, amount, referencePrice decimal.Decimal) (*matching.Order, error)
	CreateLimitOrder(pair market.Pair, side matching.Side, amount, price decimal.Decimal) (*matching.Order, error)
	CreateStopLimitOrder(pair market.Pair, side matching.Side, amount, stopPrice, limitPrice decimal.Decimal) (*matching.Order, error)
	CancelOrder(orderID uint64) error
	GetOrderInfo(orderID uint64) (matching.Order, error)
	GetOpenOrders(pair market.Pair) []matching.Order
	GetBalance(symbol string) balance.Balance
}
