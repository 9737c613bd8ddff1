package rsi

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/barstream/internal/balance"
	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/exchange"
	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/matching"
)

var _ exchange.Facade = (*fakeFacade)(nil)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var btcUSDT = market.NewPair("BTC", "USDT")
var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeFacade records order-placement calls without touching a real
// matching engine, isolating the RSI crossing logic from the matching
// engine's own behavior.
type fakeFacade struct {
	buys, sells int
}

func (f *fakeFacade) SubscribeToBarEvents(market.Pair, time.Duration, exchange.BarHandler) error {
	return nil
}
func (f *fakeFacade) SubscribeToFills(market.Pair, exchange.FillHandler) error {
	return nil
}
func (f *fakeFacade) CreateMarketOrder(pair market.Pair, side matching.Side, amount, referencePrice decimal.Decimal) (*matching.Order, error) {
	if side == matching.Buy {
		f.buys++
	} else {
		f.sells++
	}
	return &matching.Order{ID: uint64(f.buys + f.sells), Pair: pair, Side: side, Status: matching.Open}, nil
}
func (f *fakeFacade) CreateLimitOrder(market.Pair, matching.Side, decimal.Decimal, decimal.Decimal) (*matching.Order, error) {
	return nil, nil
}
func (f *fakeFacade) CreateStopLimitOrder(market.Pair, matching.Side, decimal.Decimal, decimal.Decimal, decimal.Decimal) (*matching.Order, error) {
	return nil, nil
}
func (f *fakeFacade) CancelOrder(uint64) error                    { return nil }
func (f *fakeFacade) GetOrderInfo(uint64) (matching.Order, error) { return matching.Order{}, nil }
func (f *fakeFacade) GetOpenOrders(market.Pair) []matching.Order  { return nil }
func (f *fakeFacade) GetBalance(string) balance.Balance           { return balance.Balance{} }

func feedBar(t *testing.T, s *Strategy, close string, when time.Time) {
	t.Helper()
	b := bar.Bar{Pair: btcUSDT, Period: time.Minute, Open: d(close), High: d(close), Low: d(close), Close: d(close), Volume: d("1"), When: when}
	require.NoError(t, s.OnBar(context.Background(), b))
}

func TestRSIBuysOnSustainedDeclineThenSellsOnRecovery(t *testing.T) {
	f := &fakeFacade{}
	s := New(f, btcUSDT, d("1"), 14, d("20"), d("80"))

	price := 100.0
	for i := 0; i < 30; i++ {
		price -= 2
		feedBar(t, s, decimal.NewFromFloat(price).String(), t0.Add(time.Duration(i)*time.Minute))
	}
	assert.Equal(t, 1, f.buys, "a sustained decline should eventually push RSI to or below the low threshold")

	for i := 30; i < 60; i++ {
		price += 2
		feedBar(t, s, decimal.NewFromFloat(price).String(), t0.Add(time.Duration(i)*time.Minute))
	}
	assert.Equal(t, 1, f.sells, "a sustained recovery should eventually push RSI to or above the high threshold")
}

func TestRSIWaitsForEnoughDataBeforeSignaling(t *testing.T) {
	f := &fakeFacade{}
	s := New(f, btcUSDT, d("1"), 14, d("20"), d("80"))

	for i := 0; i < 10; i++ {
		feedBar(t, s, "100", t0.Add(time.Duration(i)*time.Minute))
	}
	assert.Equal(t, 0, f.buys)
	assert.Equal(t, 0, f.sells)
}

func TestRSINeverDoubleBuysWithoutASellInBetween(t *testing.T) {
	f := &fakeFacade{}
	s := New(f, btcUSDT, d("1"), 14, d("20"), d("80"))

	price := 100.0
	for i := 0; i < 60; i++ {
		price -= 2
		feedBar(t, s, decimal.NewFromFloat(price).String(), t0.Add(time.Duration(i)*time.Minute))
	}
	assert.Equal(t, 1, f.buys)
	assert.Equal(t, 0, f.sells)
}
