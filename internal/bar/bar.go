// Package bar defines the Bar (OHLCV) primitive and its CSV wire format
// (spec.md §3, §6). Grounded on the shape of gocryptotrader's
// exchanges/kline.Candle plus backtester/data/kline/kline.go, which load
// candles destined for the same matching engine this package feeds.
package bar

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/xerrors"
)

// Bar is an OHLCV aggregate over Period, timestamped at period close
// (spec.md §3: "when = bar close").
type Bar struct {
	Pair   market.Pair
	Period time.Duration
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
	When   time.Time
}

// Validate checks the invariants spec.md §3 places on a Bar:
// low ≤ open,close ≤ high; volume ≥ 0; period > 0.
func (b Bar) Validate() error {
	if b.Period <= 0 {
		return xerrors.ErrInvalidOrder
	}
	if b.Volume.IsNegative() {
		return xerrors.ErrInvalidOrder
	}
	if b.Low.GreaterThan(b.Open) || b.Open.GreaterThan(b.High) {
		return xerrors.ErrInvalidOrder
	}
	if b.Low.GreaterThan(b.Close) || b.Close.GreaterThan(b.High) {
		return xerrors.ErrInvalidOrder
	}
	if b.When.Location() != time.UTC {
		return xerrors.ErrNaiveInstant
	}
	return nil
}
