// Package liquidity implements the Liquidity model of spec.md §4.6
// step 3: a per-bar fillable-volume bucket and the representative
// market price a market order fills at, as a function of how much of
// that bucket has already been consumed this bar. Grounded on
// thrasher-corp/gocryptotrader/backtester/eventhandlers/exchange's
// sizeOfflineOrder/ensureOrderFitsWithinHLV (cap an order's fillable
// amount against the bar's high/low/volume) and its sibling
// slippage.EstimateSlippagePercentage helper, reworked from a random
// slippage estimate into the deterministic, consumption-proportional
// charge spec.md §4.6 names explicitly ("a slippage charge proportional
// to remaining bar volume consumed so far").
package liquidity

import (
	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/bar"
)

// defaultFraction is the default available_volume = f(B.volume)
// coefficient, per spec.md §4.6 step 3 ("default f = 0.25·volume").
var defaultFraction = decimal.NewFromFloat(0.25)

// Model bounds the volume fillable within one bar and derives the
// representative price a market order fills at.
type Model struct {
	// Fraction is the f in available_volume = f(B.volume). Zero value
	// is replaced by defaultFraction in NewBucket.
	Fraction decimal.Decimal
	// SlippageRate scales the representative-price charge applied per
	// unit of the bucket already consumed this bar; default is zero
	// (representative price == bar open) if unset via NewModel.
	SlippageRate decimal.Decimal
}

// NewModel builds a Model with spec.md's default fraction (0.25) and
// slippage rate (zero, i.e. no slippage at default settings, matching
// E1's "zero slippage at 10% of bar" expectation).
func NewModel() Model {
	return Model{Fraction: defaultFraction, SlippageRate: decimal.Zero}
}

// Bucket is one bar's live liquidity allowance, created fresh by
// NewBucket at the start of matching for that bar and drawn down in
// execution order as fills occur (spec.md §4.6 step 3, "deducted from
// this bucket in execution order").
type Bucket struct {
	model    Model
	total    decimal.Decimal
	consumed decimal.Decimal
	bar      bar.Bar
}

// NewBucket opens a fresh liquidity bucket for bar b.
func (m Model) NewBucket(b bar.Bar) *Bucket {
	fraction := m.Fraction
	if fraction.IsZero() {
		fraction = defaultFraction
	}
	return &Bucket{model: m, total: b.Volume.Mul(fraction), bar: b}
}

// Available returns the remaining fillable volume in this bucket.
func (b *Bucket) Available() decimal.Decimal {
	rem := b.total.Sub(b.consumed)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// RepresentativePrice returns the price a market order fills at given
// the bucket's current consumption level: bar open plus a slippage
// charge proportional to the fraction of the bucket already consumed
// (spec.md §4.6 step 2, "Market: ... representative price derived from
// B (default: open + a slippage charge proportional to remaining bar
// volume consumed so far)").
func (b *Bucket) RepresentativePrice() decimal.Decimal {
	if b.total.IsZero() || b.model.SlippageRate.IsZero() {
		return b.bar.Open
	}
	consumedFraction := b.consumed.Div(b.total)
	charge := b.bar.Open.Mul(b.model.SlippageRate).Mul(consumedFraction)
	return b.bar.Open.Add(charge)
}

// Consume draws amount out of the bucket's remaining allowance, capping
// at what is actually available. It returns the amount actually
// consumed (which may be less than requested — a partial fill).
func (b *Bucket) Consume(amount decimal.Decimal) decimal.Decimal {
	avail := b.Available()
	fillable := amount
	if fillable.GreaterThan(avail) {
		fillable = avail
	}
	b.consumed = b.consumed.Add(fillable)
	return fillable
}
