package liquidity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testBar() bar.Bar {
	return bar.Bar{
		Pair:   market.NewPair("BTC", "USDT"),
		Period: time.Minute,
		Open:   d("100"),
		High:   d("110"),
		Low:    d("90"),
		Close:  d("105"),
		Volume: d("10"),
		When:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBucketDefaultFractionIsQuarterOfVolume(t *testing.T) {
	m := NewModel()
	b := m.NewBucket(testBar())
	assert.True(t, b.Available().Equal(d("2.5")), "got %s", b.Available())
}

func TestConsumeCapsAtAvailable(t *testing.T) {
	m := NewModel()
	b := m.NewBucket(testBar())

	got := b.Consume(d("10"))
	assert.True(t, got.Equal(d("2.5")), "got %s", got)
	assert.True(t, b.Available().IsZero())
}

func TestRepresentativePriceIsOpenWithZeroSlippage(t *testing.T) {
	m := NewModel()
	b := m.NewBucket(testBar())
	b.Consume(d("1"))
	assert.True(t, b.RepresentativePrice().Equal(d("100")))
}

func TestRepresentativePriceIncreasesWithConsumption(t *testing.T) {
	m := Model{Fraction: d("0.25"), SlippageRate: d("0.01")}
	b := m.NewBucket(testBar())

	p0 := b.RepresentativePrice()
	b.Consume(d("2"))
	p1 := b.RepresentativePrice()
	assert.True(t, p1.GreaterThan(p0), "p0=%s p1=%s", p0, p1)
}
