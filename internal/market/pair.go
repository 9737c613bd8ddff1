// Package market carries the small value types shared by every other
// package: currency pairs and per-pair decimal precision. Grounded on
// gocryptotrader's currency.Pair / currency.Code, trimmed to the fields
// the dispatcher and matching engine actually need.
package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pair is a base/quote currency pair, e.g. BTC-USDT.
type Pair struct {
	Base  string
	Quote string
}

// NewPair builds a Pair from upper-cased base and quote symbols.
func NewPair(base, quote string) Pair {
	return Pair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}
}

// ParsePair splits a "BASE-QUOTE" string into a Pair.
func ParsePair(s string) (Pair, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("market: invalid pair %q, want BASE-QUOTE", s)
	}
	return NewPair(parts[0], parts[1]), nil
}

func (p Pair) String() string { return p.Base + "-" + p.Quote }

// IsEmpty reports whether the pair has no base or quote set.
func (p Pair) IsEmpty() bool { return p.Base == "" || p.Quote == "" }

func (p Pair) Equal(o Pair) bool { return p.Base == o.Base && p.Quote == o.Quote }

// Precision carries the per-pair decimal precision used by the matching
// engine's numeric semantics (spec.md §4.6): quantities truncate toward
// zero to BasePrecision, prices round half-up to QuotePrecision.
type Precision struct {
	BasePrecision  int32
	QuotePrecision int32
}

// TruncateAmount truncates toward zero to the pair's base precision.
func (p Precision) TruncateAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Truncate(p.BasePrecision)
}

// RoundPrice rounds half-up to the pair's quote precision. Prices are
// never negative in this domain, so decimal.Round's ties-away-from-zero
// behavior is equivalent to round-half-up.
func (p Precision) RoundPrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(p.QuotePrecision)
}
