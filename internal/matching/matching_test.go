package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/barstream/internal/balance"
	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/fees"
	"github.com/quantforge/barstream/internal/lending"
	"github.com/quantforge/barstream/internal/liquidity"
	"github.com/quantforge/barstream/internal/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var btcUSDT = market.NewPair("BTC", "USDT")

func newTestManager(t *testing.T, quoteSeed string) (*Manager, *balance.Ledger) {
	t.Helper()
	ledger := balance.New()
	ledger.Deposit("USDT", d(quoteSeed))
	ledger.Deposit("BTC", d("100"))
	m := NewManager(ledger, fees.Flat{Rate: decimal.Zero}, liquidity.NewModel())
	m.RegisterPair(btcUSDT, market.Precision{BasePrecision: 4, QuotePrecision: 2})
	return m, ledger
}

func testBar(open, high, low, close, volume string, when time.Time) bar.Bar {
	return bar.Bar{
		Pair:   btcUSDT,
		Period: time.Minute,
		Open:   d(open),
		High:   d(high),
		Low:    d(low),
		Close:  d(close),
		Volume: d(volume),
		When:   when,
	}
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// E1: market buy for 1 unit before a bar open=100 high=110 low=90
// close=105 volume=10. Expected: FILLED at representative price
// (bar open, zero slippage at default settings), quote debited
// 100 + fee (fee is zero here), base credited 1.
func TestE1MarketBuyFillsAtOpen(t *testing.T) {
	m, ledger := newTestManager(t, "1000")
	order, err := m.CreateMarketOrder(btcUSDT, Buy, d("1"), d("100"))
	require.NoError(t, err)
	require.Equal(t, Open, order.Status)

	b := testBar("100", "110", "90", "105", "10", t0)
	fills, err := m.MatchBar(b)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(d("100")), "price=%s", fills[0].Price)
	assert.True(t, fills[0].Amount.Equal(d("1")))

	info, err := m.GetOrderInfo(order.ID)
	require.NoError(t, err)
	assert.Equal(t, Filled, info.Status)

	usdt := ledger.Get("USDT")
	btc := ledger.Get("BTC")
	assert.True(t, usdt.Available.Equal(d("900")), "usdt available=%s", usdt.Available)
	assert.True(t, usdt.Hold.IsZero())
	assert.True(t, btc.Available.Equal(d("101")), "btc available=%s", btc.Available)
}

// E2: limit buy at 95; bar low=96 -> no fill, stays OPEN. Next bar
// low=94 -> fill at min(95, representative) = 95.
func TestE2LimitBuyWaitsThenFillsAtLimit(t *testing.T) {
	m, _ := newTestManager(t, "1000")
	order, err := m.CreateLimitOrder(btcUSDT, Buy, d("1"), d("95"))
	require.NoError(t, err)

	b1 := testBar("100", "105", "96", "102", "10", t0)
	fills, err := m.MatchBar(b1)
	require.NoError(t, err)
	assert.Empty(t, fills)

	info, err := m.GetOrderInfo(order.ID)
	require.NoError(t, err)
	assert.Equal(t, Open, info.Status)

	b2 := testBar("98", "99", "94", "96", "10", t0.Add(time.Minute))
	fills, err = m.MatchBar(b2)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(d("95")), "price=%s", fills[0].Price)

	info, err = m.GetOrderInfo(order.ID)
	require.NoError(t, err)
	assert.Equal(t, Filled, info.Status)
}

// E3: stop-limit buy stop=105 limit=106; bar high=104 -> no trigger.
// Next bar high=107 low=95 -> trigger to OPEN, fill if low <= 106.
func TestE3StopLimitTriggersThenFills(t *testing.T) {
	m, _ := newTestManager(t, "1000")
	order, err := m.CreateStopLimitOrder(btcUSDT, Buy, d("1"), d("105"), d("106"))
	require.NoError(t, err)
	assert.Equal(t, PendingTrigger, order.Status)

	b1 := testBar("100", "104", "99", "101", "10", t0)
	fills, err := m.MatchBar(b1)
	require.NoError(t, err)
	assert.Empty(t, fills)

	info, err := m.GetOrderInfo(order.ID)
	require.NoError(t, err)
	assert.Equal(t, PendingTrigger, info.Status)

	b2 := testBar("103", "107", "95", "100", "10", t0.Add(time.Minute))
	fills, err = m.MatchBar(b2)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Price.LessThanOrEqual(d("106")))
	assert.False(t, fills[0].Maker, "order triggered this bar, must be taker")
}

// E6: cancel an OPEN limit order mid-run; state -> CANCELED, held
// quote released atomically; subsequent bars never match it.
func TestE6CancelReleasesHoldAndStopsMatching(t *testing.T) {
	m, ledger := newTestManager(t, "1000")
	order, err := m.CreateLimitOrder(btcUSDT, Buy, d("1"), d("95"))
	require.NoError(t, err)

	held := ledger.Get("USDT")
	assert.True(t, held.Hold.Equal(d("95")))

	require.NoError(t, m.CancelOrder(order.ID))

	info, err := m.GetOrderInfo(order.ID)
	require.NoError(t, err)
	assert.Equal(t, Canceled, info.Status)

	released := ledger.Get("USDT")
	assert.True(t, released.Hold.IsZero())
	assert.True(t, released.Available.Equal(d("1000")))

	b := testBar("90", "99", "80", "95", "10", t0)
	fills, err := m.MatchBar(b)
	require.NoError(t, err)
	assert.Empty(t, fills)
	assert.Empty(t, m.OpenOrdersForPair(btcUSDT))
}

// E5: a margin-enabled manager draws a loan for exactly the quote
// shortfall on a buy that would otherwise be rejected, accrues interest
// hourly via the loan pool's own scheduled cadence, and repaying from
// the proceeds of closing the position restores borrowed to zero.
func TestE5MarginBuyDrawsLoanAccruesAndRepays(t *testing.T) {
	m, ledger := newTestManager(t, "50") // only 50 USDT available
	pool := lending.New(ledger)
	m.EnableMargin(pool, d("0.0000001"))

	buy, err := m.CreateLimitOrder(btcUSDT, Buy, d("1"), d("95")) // needs 95 USDT hold
	require.NoError(t, err)
	assert.Equal(t, Open, buy.Status)

	loans := pool.OpenLoans()
	require.Len(t, loans, 1)
	assert.True(t, loans[0].Outstanding.Equal(d("45")), "outstanding=%s", loans[0].Outstanding)

	held := ledger.Get("USDT")
	assert.True(t, held.Hold.Equal(d("95")))
	assert.True(t, held.Borrowed.Equal(d("45")))

	fills, err := m.MatchBar(testBar("90", "99", "80", "95", "10", t0))
	require.NoError(t, err)
	require.Len(t, fills, 1)

	pool.Accrue(t0.Add(time.Hour))
	afterAccrual := pool.OpenLoans()[0]
	assert.True(t, afterAccrual.Outstanding.GreaterThan(d("45")), "expected interest to accrue, got %s", afterAccrual.Outstanding)

	sell, err := m.CreateLimitOrder(btcUSDT, Sell, d("1"), d("95")) // closes the position
	require.NoError(t, err)
	fills, err = m.MatchBar(testBar("95", "99", "90", "95", "10", t0.Add(time.Hour)))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	info, err := m.GetOrderInfo(sell.ID)
	require.NoError(t, err)
	assert.Equal(t, Filled, info.Status)

	require.NoError(t, pool.Repay(afterAccrual.ID, afterAccrual.Outstanding))
	assert.Empty(t, pool.OpenLoans())
	assert.True(t, ledger.Get("USDT").Borrowed.IsZero())
}

func TestCreateLimitOrderRejectsInsufficientBalance(t *testing.T) {
	m, _ := newTestManager(t, "10")
	order, err := m.CreateLimitOrder(btcUSDT, Buy, d("1"), d("95"))
	require.Error(t, err)
	require.NotNil(t, order)
	assert.Equal(t, Rejected, order.Status)
}

func TestLimitSellFillsAtMaxOfLimitAndRepresentative(t *testing.T) {
	m, ledger := newTestManager(t, "0")
	order, err := m.CreateLimitOrder(btcUSDT, Sell, d("1"), d("102"))
	require.NoError(t, err)

	btcBefore := ledger.Get("BTC")
	assert.True(t, btcBefore.Hold.Equal(d("1")))

	b := testBar("100", "110", "95", "105", "10", t0)
	fills, err := m.MatchBar(b)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(d("102")), "price=%s", fills[0].Price)

	info, err := m.GetOrderInfo(order.ID)
	require.NoError(t, err)
	assert.Equal(t, Filled, info.Status)
}

func TestLiquidityCapProducesPartialFillAcrossBars(t *testing.T) {
	m, _ := newTestManager(t, "100000")
	order, err := m.CreateMarketOrder(btcUSDT, Buy, d("10"), d("100"))
	require.NoError(t, err)

	// volume=10 -> bucket = 2.5 at default 0.25 fraction, less than the
	// order's 10 units, so it can only partially fill this bar.
	b := testBar("100", "110", "90", "105", "10", t0)
	fills, err := m.MatchBar(b)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Amount.Equal(d("2.5")), "amount=%s", fills[0].Amount)

	info, err := m.GetOrderInfo(order.ID)
	require.NoError(t, err)
	assert.Equal(t, PartiallyFilled, info.Status)
	assert.True(t, info.Remaining.Equal(d("7.5")))
}

// TestFIFOTieBreakAtSamePrice confirms that when the shared liquidity
// bucket cannot cover every order at the same price level, the
// earlier-created order is served first and exhausts the bucket before
// the later one sees any fill.
func TestFIFOTieBreakAtSamePrice(t *testing.T) {
	m, _ := newTestManager(t, "100000")
	first, err := m.CreateLimitOrder(btcUSDT, Buy, d("2"), d("100"))
	require.NoError(t, err)
	second, err := m.CreateLimitOrder(btcUSDT, Buy, d("2"), d("100"))
	require.NoError(t, err)

	b := testBar("99", "101", "95", "100", "4", t0)
	fills, err := m.MatchBar(b)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, first.ID, fills[0].OrderID)

	secondInfo, err := m.GetOrderInfo(second.ID)
	require.NoError(t, err)
	assert.Equal(t, Open, secondInfo.Status)
	assert.True(t, secondInfo.Remaining.Equal(d("2")))
}
