package multiplex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/barstream/internal/event"
	"github.com/quantforge/barstream/internal/source"
)

func ev(t time.Time, sourceID uint64, payload any) event.Event {
	return event.MustNew(t, event.KindCustom, sourceID, payload)
}

func TestPopPrefersEarliestAcrossSources(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srcA := source.NewSlice([]event.Event{ev(t0.Add(time.Minute), 1, "a1")})
	srcB := source.NewSlice([]event.Event{ev(t0, 2, "b1")})

	mux := New()
	mux.Register(srcA)
	mux.Register(srcB)

	e, seq, ok := mux.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, "b1", e.Payload())
}

func TestPopBreaksTiesByRegistrationOrder(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srcA := source.NewSlice([]event.Event{ev(t0, 1, "a-first")})
	srcB := source.NewSlice([]event.Event{ev(t0, 2, "b-first")})

	mux := New()
	mux.Register(srcA) // registered first, wins the tie
	mux.Register(srcB)

	e, _, ok := mux.Pop()
	require.True(t, ok)
	assert.Equal(t, "a-first", e.Payload())
}

func TestStatusTransitions(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srcA := source.NewSlice([]event.Event{ev(t0, 1, "only")})

	mux := New()
	assert.Equal(t, Exhausted, mux.Status())

	mux.Register(srcA)
	assert.Equal(t, Ready, mux.Status())

	_, _, ok := mux.Pop()
	require.True(t, ok)
	assert.Equal(t, Exhausted, mux.Status())
}

func TestStatusIdleWithBufferedSource(t *testing.T) {
	buf := source.NewBuffered(nil)
	mux := New()
	mux.Register(buf)

	assert.Equal(t, Idle, mux.Status())
	_, ok := mux.PeekWhen()
	assert.False(t, ok)
}
