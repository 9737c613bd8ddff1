// Package rsi is a sample strategy subscriber built on the Exchange
// Façade: it watches bar closes for a pair, computes a relative
// strength index over a trailing window, and places a market order
// when RSI crosses into oversold/overbought territory. Grounded on
// backtester/eventhandlers/strategies/rsi.Strategy.OnSignal, trimmed
// from the teacher's pluggable Handler-interface strategy framework
// (selectable by name, DoNothing/MissingData signal states, signal
// event plumbing through portfolio sizing) down to a single concrete
// subscriber wired directly against internal/exchange.Facade, since
// the broader strategy-selection framework and its DSL
// (`d5/tengo/v2`) are out of scope (spec.md's Non-goals).
package rsi

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/gct-ta/indicators"

	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/exchange"
	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/matching"
)

// Strategy computes a trailing-window RSI off bar closes and issues
// buy/sell market orders when it crosses the configured thresholds.
type Strategy struct {
	facade exchange.Facade
	pair   market.Pair
	amount decimal.Decimal

	period   int
	low      decimal.Decimal
	high     decimal.Decimal
	position bool // true once a buy has been placed and not yet sold

	closes []float64
}

// New builds a Strategy that trades pair on facade, buying amount units
// when RSI(period) falls to or below low and selling the full position
// when it rises to or above high.
func New(facade exchange.Facade, pair market.Pair, amount decimal.Decimal, period int, low, high decimal.Decimal) *Strategy {
	return &Strategy{facade: facade, pair: pair, amount: amount, period: period, low: low, high: high}
}

// OnBar is the bar handler registered against the façade
// (exchange.BarHandler's shape); it is suspension-capable only insofar
// as CreateMarketOrder itself may suspend.
func (s *Strategy) OnBar(ctx context.Context, b bar.Bar) error {
	s.closes = append(s.closes, b.Close.InexactFloat64())
	if len(s.closes) <= s.period {
		return nil
	}

	values := indicators.RSI(s.closes, s.period)
	latest := decimal.NewFromFloat(values[len(values)-1])

	switch {
	case !s.position && latest.LessThanOrEqual(s.low):
		order, err := s.facade.CreateMarketOrder(s.pair, matching.Buy, s.amount, b.Close)
		if err != nil {
			return fmt.Errorf("rsi: buy signal at rsi=%s: %w", latest, err)
		}
		s.position = true
		log.Infof(log.Exchange, "rsi strategy: buy order %d placed at rsi=%s", order.ID, latest)
	case s.position && latest.GreaterThanOrEqual(s.high):
		order, err := s.facade.CreateMarketOrder(s.pair, matching.Sell, s.amount, b.Close)
		if err != nil {
			return fmt.Errorf("rsi: sell signal at rsi=%s: %w", latest, err)
		}
		s.position = false
		log.Infof(log.Exchange, "rsi strategy: sell order %d placed at rsi=%s", order.ID, latest)
	}
	return nil
}
