package source

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/event"
	"github.com/quantforge/barstream/internal/market"
)

func sampleBars(pair market.Pair) []bar.Bar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []bar.Bar{
		{Pair: pair, Period: time.Hour, Open: d(100), High: d(110), Low: d(90), Close: d(105), Volume: d(10), When: t0},
		{Pair: pair, Period: time.Hour, Open: d(105), High: d(115), Low: d(100), Close: d(110), Volume: d(8), When: t0.Add(time.Hour)},
	}
}

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestSliceBarSourceOrdering(t *testing.T) {
	pair := market.NewPair("BTC", "USD")
	src := NewSliceBarSource(sampleBars(pair), 1)

	first, ok := src.PeekWhen()
	require.True(t, ok)
	assert.False(t, src.IsTerminated())

	e, ok := src.Pop()
	require.True(t, ok)
	assert.Equal(t, first, e.When())

	b, ok := AsBar(e)
	require.True(t, ok)
	assert.Equal(t, "100", b.Open.String())

	_, ok = src.Pop()
	require.True(t, ok)
	assert.True(t, src.IsTerminated())

	_, ok = src.Pop()
	assert.False(t, ok)
}

func TestBufferedSourceConcurrentAppend(t *testing.T) {
	b := NewBuffered(nil)
	_, ok := b.PeekWhen()
	assert.False(t, ok)
	assert.False(t, b.IsTerminated())

	done := make(chan struct{})
	go func() {
		e, _ := event.New(time.Now().UTC(), event.KindCustom, 2, "x")
		b.Append(e)
		close(done)
	}()
	<-done

	when, ok := b.PeekWhen()
	require.True(t, ok)
	_ = when

	_, ok = b.Pop()
	require.True(t, ok)

	b.Close()
	assert.True(t, b.IsTerminated())
}
