package matching

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/liquidity"
	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/xerrors"
)

// MatchBar runs spec.md §4.6's per-bar matching algorithm for b.Pair:
// trigger any due PENDING_TRIGGER orders, then match every active order
// against a single shared liquidity bucket for this bar, settling fills
// against the balance ledger as they occur. Returns every Fill
// produced, in execution order.
func (m *Manager) MatchBar(b bar.Bar) ([]Fill, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	precision, err := m.precisionFor(b.Pair)
	if err != nil {
		return nil, err
	}
	m.lastWhen = b.When

	list := m.byPair[b.Pair.String()]
	m.triggerStops(list, b)

	active := make([]*Order, 0, len(list))
	for _, o := range list {
		if isActive(o.Status) {
			active = append(active, o)
		}
	}
	sortByPriority(active)

	bucket := m.liq.NewBucket(b)
	var fills []Fill
	for _, o := range active {
		f, err := m.matchOrder(o, b, bucket, precision)
		if err != nil {
			return fills, err
		}
		if f != nil {
			fills = append(fills, *f)
		}
	}

	for _, o := range list {
		o.triggeredThisBar = false
	}
	return fills, nil
}

// triggerStops transitions PENDING_TRIGGER orders whose stop condition
// is met within b's high/low range into OPEN (spec.md §4.6 step 1).
func (m *Manager) triggerStops(list []*Order, b bar.Bar) {
	for _, o := range list {
		if o.Status != PendingTrigger {
			continue
		}
		triggered := false
		switch o.Side {
		case Buy:
			triggered = b.High.GreaterThanOrEqual(o.StopPrice)
		case Sell:
			triggered = b.Low.LessThanOrEqual(o.StopPrice)
		}
		if triggered {
			o.Status = Open
			o.triggeredThisBar = true
			log.Debugf(log.Matcher, "order %d triggered at bar %s (stop=%s)", o.ID, b.When, o.StopPrice)
		}
	}
}

// sortByPriority orders active orders per spec.md §4.6 step 2:
// stop-triggered-this-bar first, then price priority (best price
// wins), then FIFO by creation sequence. Market orders are always the
// most aggressive price. Buy limit orders are more aggressive the
// higher their price; sell limit orders are more aggressive the lower
// their price — priorityScore folds both into one ascending key so a
// single sort handles both sides.
func sortByPriority(orders []*Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, bOrd := orders[i], orders[j]
		if a.triggeredThisBar != bOrd.triggeredThisBar {
			return a.triggeredThisBar
		}
		pa, isMarketA := priorityScore(a)
		pb, isMarketB := priorityScore(bOrd)
		if isMarketA != isMarketB {
			return isMarketA
		}
		if !isMarketA && !pa.Equal(pb) {
			return pa.LessThan(pb)
		}
		return a.Seq < bOrd.Seq
	})
}

// priorityScore returns an ascending-is-better key for limit orders
// (market orders report isMarket=true and always sort first).
func priorityScore(o *Order) (score decimal.Decimal, isMarket bool) {
	if o.Type == Market {
		return decimal.Zero, true
	}
	if o.Side == Buy {
		return o.LimitPrice.Neg(), false
	}
	return o.LimitPrice, false
}

// matchOrder attempts a single fill of o against b using bucket's
// remaining liquidity, settling it against the balance ledger
// immediately if it occurs. Returns nil, nil if o does not fill this
// bar.
func (m *Manager) matchOrder(o *Order, b bar.Bar, bucket *liquidity.Bucket, precision market.Precision) (*Fill, error) {
	fillable, price, ok := m.fillableAt(o, b, bucket, precision)
	if !ok || fillable.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	maker := !o.triggeredThisBar
	fee := m.feeFor(fillable, price, maker, precision)

	fillable, fee = m.capToHeld(o, fillable, price, fee, precision)
	if fillable.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	consumed := bucket.Consume(fillable)
	if !consumed.Equal(fillable) {
		fillable = consumed
		fee = m.feeFor(fillable, price, maker, precision)
		fillable, fee = m.capToHeld(o, fillable, price, fee, precision)
		if fillable.LessThanOrEqual(decimal.Zero) {
			return nil, nil
		}
	}

	if err := m.settle(o, fillable, price, fee); err != nil {
		return nil, err
	}

	o.Remaining = o.Remaining.Sub(fillable)
	if o.Remaining.IsZero() {
		o.Status = Filled
		if err := m.releaseRemainingHold(o); err != nil {
			return nil, err
		}
		m.removeFromPairIndex(o)
	} else {
		o.Status = PartiallyFilled
	}

	f := Fill{
		OrderID:   o.ID,
		Pair:      o.Pair,
		Side:      o.Side,
		Amount:    fillable,
		Price:     price,
		Fee:       fee,
		FeeSymbol: o.Pair.Quote,
		Maker:     maker,
		When:      b.When,
	}
	log.Debugf(log.Matcher, "order %d filled %s @ %s (fee=%s maker=%v)", o.ID, fillable, price, fee, maker)
	return &f, nil
}

func (m *Manager) feeFor(amount, price decimal.Decimal, maker bool, precision market.Precision) decimal.Decimal {
	if m.feeSched == nil {
		return decimal.Zero
	}
	return m.feeSched.Fee(amount, price, maker, precision.QuotePrecision)
}

// fillableAt determines whether o can fill against b right now and, if
// so, the candidate amount (capped by remaining amount and bucket
// liquidity, not yet capped by hold) and the fill price (spec.md §4.6
// step 2).
func (m *Manager) fillableAt(o *Order, b bar.Bar, bucket *liquidity.Bucket, precision market.Precision) (amount, price decimal.Decimal, ok bool) {
	representative := bucket.RepresentativePrice()

	switch o.Type {
	case Market:
		price = representative
	case Limit, StopLimit:
		switch o.Side {
		case Buy:
			if b.Low.GreaterThan(o.LimitPrice) {
				return decimal.Zero, decimal.Zero, false
			}
			price = decimal.Min(o.LimitPrice, representative)
		case Sell:
			if b.High.LessThan(o.LimitPrice) {
				return decimal.Zero, decimal.Zero, false
			}
			price = decimal.Max(o.LimitPrice, representative)
		}
	}
	price = precision.RoundPrice(price)

	amount = precision.TruncateAmount(decimal.Min(o.Remaining, bucket.Available()))
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, false
	}
	return amount, price, true
}

// capToHeld reduces fillable (and its fee, proportionally) so the
// resulting debit never exceeds what remains held for a buy order.
// Sell orders hold an exact base amount so Remaining already bounds
// fillable correctly and no reduction applies (spec.md §4.6 "Numeric
// semantics": balances never go negative; reduce to the maximum
// feasible amount before commit).
func (m *Manager) capToHeld(o *Order, fillable, price, fee decimal.Decimal, precision market.Precision) (decimal.Decimal, decimal.Decimal) {
	if o.Side != Buy {
		return fillable, fee
	}
	heldRemaining := o.heldAmount.Sub(o.heldConsumed)
	totalDebit := fillable.Mul(price).Add(fee)
	if totalDebit.LessThanOrEqual(heldRemaining) {
		return fillable, fee
	}
	if totalDebit.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	scale := heldRemaining.Div(totalDebit)
	reduced := precision.TruncateAmount(fillable.Mul(scale))
	if reduced.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero
	}
	return reduced, fee.Mul(scale)
}

// settle performs the atomic balance update of spec.md §4.6 step 5: the
// paid symbol (including hold release) is debited and the received
// symbol is credited minus fees. Fee is always denominated in the
// quote symbol: added to a buy's cost, subtracted from a sell's
// proceeds, per spec.md §8 E1 ("quote debited 100 + fee, base credited
// 1" — the fee never reduces the received base leg).
func (m *Manager) settle(o *Order, amount, price, fee decimal.Decimal) error {
	switch o.Side {
	case Buy:
		cost := amount.Mul(price).Add(fee)
		if err := m.balances.Transfer(o.Pair.Quote, cost, o.Pair.Base, amount); err != nil {
			return err
		}
		o.heldConsumed = o.heldConsumed.Add(cost)
	case Sell:
		proceeds := amount.Mul(price).Sub(fee)
		if proceeds.IsNegative() {
			proceeds = decimal.Zero
		}
		if err := m.balances.Transfer(o.Pair.Base, amount, o.Pair.Quote, proceeds); err != nil {
			return err
		}
		o.heldConsumed = o.heldConsumed.Add(amount)
	default:
		return xerrors.ErrInvalidOrder
	}
	return nil
}
