// Package fees implements the Fees model of spec.md §4.6 step 4:
// maker/taker-distinguished, per-symbol percentage commission. Grounded
// on thrasher-corp/gocryptotrader/exchanges/fee.Commission
// (maker/taker percentage rate pair with a validate step), trimmed to
// the flat and tiered shapes the matching engine needs and changed from
// float64 to decimal.Decimal throughout since spec.md §4.6 forbids
// binary floats in the matching/fees/balance path.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Schedule computes the fee owed on a fill. Implementations must round
// up (exchange-favoring), per spec.md §4.6 "Numeric semantics".
type Schedule interface {
	// Fee returns the fee, denominated in the pair's quote symbol, owed
	// for a fill of amount at price. maker is true when the filled order sat on the
	// book before the bar began (spec.md §4.6 step 4).
	Fee(amount, price decimal.Decimal, maker bool, precision int32) decimal.Decimal
}

// Flat charges the same percentage rate regardless of maker/taker
// status. Grounded on Commission.IsFixedAmount == false with Maker ==
// Taker.
type Flat struct {
	Rate decimal.Decimal
}

// Fee returns amount*price*Rate, rounded up to precision decimal places.
func (f Flat) Fee(amount, price decimal.Decimal, _ bool, precision int32) decimal.Decimal {
	return roundUp(amount.Mul(price).Mul(f.Rate), precision)
}

// MakerTaker charges distinct percentage rates depending on whether the
// fill took liquidity off the book (taker) or was already resting
// (maker). Grounded on exchanges/fee.Commission{Maker, Taker}.
type MakerTaker struct {
	MakerRate decimal.Decimal
	TakerRate decimal.Decimal
}

// NewMakerTaker validates maker <= taker (gocryptotrader's
// Commission.validate invariant: liquidity provision is never charged
// more than liquidity removal) before constructing the schedule.
func NewMakerTaker(maker, taker decimal.Decimal) (MakerTaker, error) {
	if maker.GreaterThan(taker) {
		return MakerTaker{}, fmt.Errorf("fees: maker rate %s exceeds taker rate %s", maker, taker)
	}
	return MakerTaker{MakerRate: maker, TakerRate: taker}, nil
}

// Fee returns amount*price*rate, where rate is MakerRate or TakerRate
// depending on maker, rounded up to precision decimal places.
func (m MakerTaker) Fee(amount, price decimal.Decimal, maker bool, precision int32) decimal.Decimal {
	rate := m.TakerRate
	if maker {
		rate = m.MakerRate
	}
	return roundUp(amount.Mul(price).Mul(rate), precision)
}

// Tiered selects a MakerTaker rate by cumulative traded volume, the
// common exchange VIP-tier shape; the volume is the total notional of
// every fill this schedule has charged, with no time window. Tiers must be sorted ascending by
// MinVolume; the highest tier whose MinVolume does not exceed the
// supplied volume applies. Tiered tracks its own trailingVolume so it
// can satisfy Schedule directly: every Fee call both charges at the
// currently-qualifying tier and advances the running total by this
// fill's notional, so later fills in the same run see the higher tier.
type Tiered struct {
	Tiers          []Tier
	trailingVolume decimal.Decimal
}

// Tier is one volume breakpoint of a Tiered schedule.
type Tier struct {
	MinVolume decimal.Decimal
	Rates     MakerTaker
}

// NewTiered validates tiers (sorted ascending by MinVolume, each tier's
// maker rate not exceeding its taker rate) before constructing the
// schedule.
func NewTiered(tiers []Tier) (*Tiered, error) {
	for i, tier := range tiers {
		if tier.Rates.MakerRate.GreaterThan(tier.Rates.TakerRate) {
			return nil, fmt.Errorf("fees: tier %d: maker rate %s exceeds taker rate %s", i, tier.Rates.MakerRate, tier.Rates.TakerRate)
		}
		if i > 0 && tier.MinVolume.LessThan(tiers[i-1].MinVolume) {
			return nil, fmt.Errorf("fees: tiers must be sorted ascending by min-volume")
		}
	}
	return &Tiered{Tiers: tiers}, nil
}

// FeeAtVolume returns the fee for a fill given an explicit trailing
// volume, selecting the highest-qualifying tier. It does not touch the
// schedule's own running total — callers tracking volume themselves
// (e.g. tests) can use it directly instead of Fee.
func (t *Tiered) FeeAtVolume(amount, price decimal.Decimal, maker bool, precision int32, trailingVolume decimal.Decimal) decimal.Decimal {
	rates := t.ratesFor(trailingVolume)
	return rates.Fee(amount, price, maker, precision)
}

// Fee satisfies Schedule: it charges at the tier qualified by the
// schedule's own running trailing volume, then advances that total by
// this fill's notional value (amount*price).
func (t *Tiered) Fee(amount, price decimal.Decimal, maker bool, precision int32) decimal.Decimal {
	fee := t.FeeAtVolume(amount, price, maker, precision, t.trailingVolume)
	t.trailingVolume = t.trailingVolume.Add(amount.Mul(price))
	return fee
}

func (t *Tiered) ratesFor(trailingVolume decimal.Decimal) MakerTaker {
	if len(t.Tiers) == 0 {
		return MakerTaker{}
	}
	best := t.Tiers[0]
	for _, tier := range t.Tiers {
		if trailingVolume.GreaterThanOrEqual(tier.MinVolume) && tier.MinVolume.GreaterThanOrEqual(best.MinVolume) {
			best = tier
		}
	}
	return best.Rates
}

var _ Schedule = (*Tiered)(nil)

// roundUp rounds v up (away from zero, since fees are never negative)
// to precision decimal places — spec.md §4.6: "Fees round up
// (exchange-favoring)".
func roundUp(v decimal.Decimal, precision int32) decimal.Decimal {
	rounded := v.Truncate(precision)
	if rounded.Equal(v) {
		return rounded
	}
	step := decimal.New(1, -precision)
	return rounded.Add(step)
}
