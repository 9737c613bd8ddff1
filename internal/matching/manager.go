package matching

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/balance"
	"github.com/quantforge/barstream/internal/fees"
	"github.com/quantforge/barstream/internal/lending"
	"github.com/quantforge/barstream/internal/liquidity"
	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/xerrors"
)

// Manager is the OrderManager of spec.md §4.6: it owns every order,
// exposes the create/cancel/query surface, and matches OPEN orders
// against incoming bars. Touched only from the dispatcher's single
// logical task (spec.md §5); no internal locking.
type Manager struct {
	balances *balance.Ledger
	feeSched fees.Schedule
	liq      liquidity.Model

	margin     *lending.Pool
	marginRate decimal.Decimal
	lastWhen   time.Time

	precisions map[string]market.Precision
	orders     map[uint64]*Order
	byPair     map[string][]*Order

	nextID  uint64
	nextSeq uint64
}

// NewManager builds a Manager over an existing balance ledger. feeSched
// and liq may be nil-valued zero structs; a caller wanting flat zero
// fees can pass fees.Flat{} directly.
func NewManager(balances *balance.Ledger, feeSched fees.Schedule, liq liquidity.Model) *Manager {
	return &Manager{
		balances:   balances,
		feeSched:   feeSched,
		liq:        liq,
		precisions: make(map[string]market.Precision),
		orders:     make(map[uint64]*Order),
		byPair:     make(map[string][]*Order),
	}
}

// RegisterPair sets the decimal precision the matcher truncates/rounds
// amounts and prices to for pair (spec.md §4.6 "Numeric semantics").
func (m *Manager) RegisterPair(pair market.Pair, precision market.Precision) {
	m.precisions[pair.String()] = precision
}

// EnableMargin turns on margin borrowing (spec.md §4.8/§8 E5): once
// set, an order whose hold would otherwise be rejected for insufficient
// balance instead draws a loan from pool for exactly the shortfall,
// at ratePerSec, before retrying the hold. Without a call to
// EnableMargin, submit behaves exactly as before (reject on shortfall).
func (m *Manager) EnableMargin(pool *lending.Pool, ratePerSec decimal.Decimal) {
	m.margin = pool
	m.marginRate = ratePerSec
}

func (m *Manager) precisionFor(pair market.Pair) (market.Precision, error) {
	p, ok := m.precisions[pair.String()]
	if !ok {
		return market.Precision{}, xerrors.ErrUnknownPair
	}
	return p, nil
}

// CreateMarketOrder submits a market order. referencePrice sizes the
// quote hold for a buy (the actual fill price is only known once a bar
// is matched); it is otherwise unused. Not part of spec.md's literal
// method list, since a market order's cost cannot be known at
// submission time without some reference — the exchange façade is
// expected to supply the last observed close price.
func (m *Manager) CreateMarketOrder(pair market.Pair, side Side, amount decimal.Decimal, referencePrice decimal.Decimal) (*Order, error) {
	return m.submit(pair, side, Market, amount, decimal.Zero, decimal.Zero, referencePrice)
}

// CreateLimitOrder submits a limit order at price.
func (m *Manager) CreateLimitOrder(pair market.Pair, side Side, amount, price decimal.Decimal) (*Order, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, xerrors.ErrInvalidOrder
	}
	return m.submit(pair, side, Limit, amount, price, decimal.Zero, price)
}

// CreateStopLimitOrder submits a stop-limit order: it sits in
// PENDING_TRIGGER until B.high/B.low crosses stopPrice (spec.md §4.6
// step 1), then behaves as a limit order at limitPrice.
func (m *Manager) CreateStopLimitOrder(pair market.Pair, side Side, amount, stopPrice, limitPrice decimal.Decimal) (*Order, error) {
	if stopPrice.LessThanOrEqual(decimal.Zero) || limitPrice.LessThanOrEqual(decimal.Zero) {
		return nil, xerrors.ErrInvalidOrder
	}
	return m.submit(pair, side, StopLimit, amount, limitPrice, stopPrice, limitPrice)
}

// submit validates, holds funds, and inserts a new order. holdPrice is
// the price used to size a buy-side quote hold (limitPrice for
// limit/stop-limit, referencePrice for market).
func (m *Manager) submit(pair market.Pair, side Side, typ Type, amount, limitPrice, stopPrice, holdPrice decimal.Decimal) (*Order, error) {
	precision, err := m.precisionFor(pair)
	if err != nil {
		return nil, err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, xerrors.ErrInvalidOrder
	}
	amount = precision.TruncateAmount(amount)
	if amount.IsZero() {
		return nil, xerrors.ErrInvalidOrder
	}

	m.nextID++
	m.nextSeq++
	o := &Order{
		ID:         m.nextID,
		Seq:        m.nextSeq,
		Pair:       pair,
		Side:       side,
		Type:       typ,
		Amount:     amount,
		Remaining:  amount,
		LimitPrice: limitPrice,
		StopPrice:  stopPrice,
		Status:     New,
	}

	heldSymbol, heldAmount := m.holdRequirement(o, precision, holdPrice)
	if err := m.balances.Hold(heldSymbol, heldAmount); err != nil {
		if m.margin != nil && errors.Is(err, xerrors.ErrInsufficientBalance) {
			err = m.drawMarginShortfall(heldSymbol, heldAmount)
		}
		if err != nil {
			o.Status = Rejected
			o.RejectReason = err.Error()
			m.orders[o.ID] = o
			log.Warnf(log.Matcher, "order %d rejected at submission: %v", o.ID, err)
			return o, err
		}
	}
	o.heldSymbol = heldSymbol
	o.heldAmount = heldAmount

	if typ == StopLimit {
		o.Status = PendingTrigger
	} else {
		o.Status = Open
	}

	m.orders[o.ID] = o
	m.byPair[pair.String()] = append(m.byPair[pair.String()], o)
	return o, nil
}

// drawMarginShortfall borrows exactly enough of symbol to cover
// heldAmount's shortfall against the ledger's current available
// balance, then retries the hold. Called only once per submit — if the
// ledger still can't cover heldAmount after borrowing (it always should,
// since Borrow credits available unconditionally), the retried Hold's
// error is returned as-is.
func (m *Manager) drawMarginShortfall(symbol string, heldAmount decimal.Decimal) error {
	available := m.balances.Get(symbol).Available
	shortfall := heldAmount.Sub(available)
	if shortfall.LessThanOrEqual(decimal.Zero) {
		return m.balances.Hold(symbol, heldAmount)
	}
	loan := m.margin.Borrow(symbol, shortfall, m.marginRate, m.lastWhen)
	log.Infof(log.Matcher, "drew margin loan %d for %s %s shortfall", loan.ID, shortfall, symbol)
	return m.balances.Hold(symbol, heldAmount)
}

func (m *Manager) holdRequirement(o *Order, precision market.Precision, holdPrice decimal.Decimal) (symbol string, amount decimal.Decimal) {
	if o.Side == Buy {
		return o.Pair.Quote, precision.RoundPrice(o.Amount.Mul(holdPrice))
	}
	return o.Pair.Base, o.Amount
}

// CancelOrder transitions an active order to CANCELED and releases any
// unconsumed hold back to available (spec.md §8 E6).
func (m *Manager) CancelOrder(id uint64) error {
	o, ok := m.orders[id]
	if !ok {
		return xerrors.ErrOrderNotFound
	}
	if !isActive(o.Status) && o.Status != PendingTrigger {
		return fmt.Errorf("matching: order %d is not cancelable in status %s", id, o.Status)
	}
	if err := m.releaseRemainingHold(o); err != nil {
		return err
	}
	o.Status = Canceled
	m.removeFromPairIndex(o)
	return nil
}

func (m *Manager) releaseRemainingHold(o *Order) error {
	remaining := o.heldAmount.Sub(o.heldConsumed)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	return m.balances.Release(o.heldSymbol, remaining)
}

// GetOrderInfo returns a snapshot of order id.
func (m *Manager) GetOrderInfo(id uint64) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, xerrors.ErrOrderNotFound
	}
	return *o, nil
}

// OpenOrdersForPair returns snapshots of every non-terminal order on
// pair, in creation order.
func (m *Manager) OpenOrdersForPair(pair market.Pair) []Order {
	var out []Order
	for _, o := range m.byPair[pair.String()] {
		if !o.Status.IsTerminal() {
			out = append(out, *o)
		}
	}
	return out
}

func (m *Manager) removeFromPairIndex(o *Order) {
	key := o.Pair.String()
	list := m.byPair[key]
	for i, cand := range list {
		if cand.ID == o.ID {
			m.byPair[key] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
