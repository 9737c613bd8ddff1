package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/balance"
	"github.com/quantforge/barstream/internal/dispatcher"
	"github.com/quantforge/barstream/internal/event"
	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/matching"
	"github.com/quantforge/barstream/internal/source"
)

// subscriber is the slice of dispatcher.Backtesting/dispatcher.Realtime
// that Backtesting needs at construction time — both variants satisfy
// this through the embedded base type, so this façade never cares
// which one is driving it.
type subscriber interface {
	Subscribe(k event.Kind, h dispatcher.Handler)
}

type barSubscription struct {
	pair    market.Pair
	period  time.Duration
	handler BarHandler
}

type fillSubscription struct {
	pair    market.Pair
	handler FillHandler
}

// Backtesting is the backtesting Exchange Façade of spec.md §4.9: it
// routes every order-placement call straight to an in-process
// matching.Manager and drives it bar-by-bar off the dispatcher's own
// KindBar events, so strategies see exactly the same suspension
// semantics whether they are replaying history or (via Live, out of
// scope) trading live. Grounded on
// thrasher-corp/gocryptotrader/backtester/eventhandlers/exchange.Exchange,
// whose ExecuteOrder is the same "one façade in front of the order
// book" role, here re-targeted at matching.Manager instead of a real
// exchange wrapper.
type Backtesting struct {
	mu       sync.Mutex
	manager  *matching.Manager
	balances *balance.Ledger

	barSubs  []barSubscription
	fillSubs []fillSubscription
}

// NewBacktesting builds a Backtesting façade over manager/balances and
// subscribes it to d's bar events. manager must already have every
// traded pair registered via its RegisterPair.
func NewBacktesting(d subscriber, manager *matching.Manager, balances *balance.Ledger) *Backtesting {
	f := &Backtesting{manager: manager, balances: balances}
	d.Subscribe(event.KindBar, f.onBar)
	return f
}

// onBar matches manager against the bar carried by e, then fans out the
// resulting fills and the bar itself to every registered subscriber,
// in registration order (spec.md §4.4's delivery-order guarantee
// applies transitively: this handler is itself a single dispatcher
// subscriber, so it only ever runs with the dispatcher's clock already
// parked at e.When()).
func (f *Backtesting) onBar(ctx context.Context, e event.Event) error {
	b, ok := source.AsBar(e)
	if !ok {
		return nil
	}

	fills, err := f.manager.MatchBar(b)
	if err != nil {
		return err
	}

	f.mu.Lock()
	barSubs := append([]barSubscription(nil), f.barSubs...)
	fillSubs := append([]fillSubscription(nil), f.fillSubs...)
	f.mu.Unlock()

	for _, sub := range barSubs {
		if !sub.pair.Equal(b.Pair) || sub.period != b.Period {
			continue
		}
		if err := sub.handler(ctx, b); err != nil {
			log.Errorf(log.Exchange, "bar handler error for %s: %v", b.Pair, err)
			return err
		}
	}
	for _, fill := range fills {
		for _, sub := range fillSubs {
			if !sub.pair.Equal(fill.Pair) {
				continue
			}
			if err := sub.handler(ctx, fill); err != nil {
				log.Errorf(log.Exchange, "fill handler error for %s: %v", fill.Pair, err)
				return err
			}
		}
	}
	return nil
}

func (f *Backtesting) SubscribeToBarEvents(pair market.Pair, period time.Duration, handler BarHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.barSubs = append(f.barSubs, barSubscription{pair: pair, period: period, handler: handler})
	return nil
}

func (f *Backtesting) SubscribeToFills(pair market.Pair, handler FillHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fillSubs = append(f.fillSubs, fillSubscription{pair: pair, handler: handler})
	return nil
}

func (f *Backtesting) CreateMarketOrder(pair market.Pair, side matching.Side, amount, referencePrice decimal.Decimal) (*matching.Order, error) {
	return f.manager.CreateMarketOrder(pair, side, amount, referencePrice)
}

func (f *Backtesting) CreateLimitOrder(pair market.Pair, side matching.Side, amount, price decimal.Decimal) (*matching.Order, error) {
	return f.manager.CreateLimitOrder(pair, side, amount, price)
}

func (f *Backtesting) CreateStopLimitOrder(pair market.Pair, side matching.Side, amount, stopPrice, limitPrice decimal.Decimal) (*matching.Order, error) {
	return f.manager.CreateStopLimitOrder(pair, side, amount, stopPrice, limitPrice)
}

func (f *Backtesting) CancelOrder(orderID uint64) error {
	return f.manager.CancelOrder(orderID)
}

func (f *Backtesting) GetOrderInfo(orderID uint64) (matching.Order, error) {
	return f.manager.GetOrderInfo(orderID)
}

func (f *Backtesting) GetOpenOrders(pair market.Pair) []matching.Order {
	return f.manager.OpenOrdersForPair(pair)
}

func (f *Backtesting) GetBalance(symbol string) balance.Balance {
	return f.balances.Get(symbol)
}

var _ Facade = (*Backtesting)(nil)
