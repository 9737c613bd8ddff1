package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/barstream/internal/balance"
	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/dispatcher"
	"github.com/quantforge/barstream/internal/fees"
	"github.com/quantforge/barstream/internal/liquidity"
	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/matching"
	"github.com/quantforge/barstream/internal/source"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var btcUSDT = market.NewPair("BTC", "USDT")

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestFacade(t *testing.T, bars []bar.Bar) (*Backtesting, *dispatcher.Backtesting) {
	t.Helper()
	ledger := balance.New()
	ledger.Deposit("USDT", d("1000"))
	ledger.Deposit("BTC", d("10"))

	manager := matching.NewManager(ledger, fees.Flat{Rate: decimal.Zero}, liquidity.NewModel())
	manager.RegisterPair(btcUSDT, market.Precision{BasePrecision: 4, QuotePrecision: 2})

	disp := dispatcher.NewBacktesting()
	disp.RegisterSource(source.NewSliceBarSource(bars, 1))

	f := NewBacktesting(disp, manager, ledger)
	return f, disp
}

func testBar(open, high, low, close, volume string, when time.Time) bar.Bar {
	return bar.Bar{
		Pair: btcUSDT, Period: time.Minute,
		Open: d(open), High: d(high), Low: d(low), Close: d(close), Volume: d(volume),
		When: when,
	}
}

func TestBarSubscriberReceivesBarsMatchingPairAndPeriod(t *testing.T) {
	bars := []bar.Bar{testBar("100", "110", "90", "105", "10", t0)}
	f, disp := newTestFacade(t, bars)

	var received []bar.Bar
	require.NoError(t, f.SubscribeToBarEvents(btcUSDT, time.Minute, func(ctx context.Context, b bar.Bar) error {
		received = append(received, b)
		return nil
	}))
	// a different period must never match.
	require.NoError(t, f.SubscribeToBarEvents(btcUSDT, time.Hour, func(ctx context.Context, b bar.Bar) error {
		t.Fatal("handler for mismatched period must not run")
		return nil
	}))

	require.NoError(t, disp.Run(context.Background()))
	require.Len(t, received, 1)
	assert.True(t, received[0].Close.Equal(d("105")))
}

func TestOrderFillsRoutedToFillSubscriber(t *testing.T) {
	bars := []bar.Bar{testBar("100", "110", "90", "105", "10", t0)}
	f, disp := newTestFacade(t, bars)

	_, err := f.CreateMarketOrder(btcUSDT, matching.Buy, d("1"), d("100"))
	require.NoError(t, err)

	var fills []matching.Fill
	require.NoError(t, f.SubscribeToFills(btcUSDT, func(ctx context.Context, fl matching.Fill) error {
		fills = append(fills, fl)
		return nil
	}))

	require.NoError(t, disp.Run(context.Background()))
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Amount.Equal(d("1")))
}

func TestCancelOrderAndQueryOpenOrders(t *testing.T) {
	f, _ := newTestFacade(t, nil)

	order, err := f.CreateLimitOrder(btcUSDT, matching.Buy, d("1"), d("95"))
	require.NoError(t, err)
	assert.Len(t, f.GetOpenOrders(btcUSDT), 1)

	require.NoError(t, f.CancelOrder(order.ID))
	assert.Empty(t, f.GetOpenOrders(btcUSDT))

	info, err := f.GetOrderInfo(order.ID)
	require.NoError(t, err)
	assert.Equal(t, matching.Canceled, info.Status)
}

func TestGetBalanceReflectsHolds(t *testing.T) {
	f, _ := newTestFacade(t, nil)
	_, err := f.CreateLimitOrder(btcUSDT, matching.Buy, d("1"), d("95"))
	require.NoError(t, err)

	bal := f.GetBalance("USDT")
	assert.True(t, bal.Hold.Equal(d("95")))
}

var _ Facade = (*Backtesting)(nil)
