package lending

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/barstream/internal/balance"
	"github.com/quantforge/barstream/internal/scheduler"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestBorrowCreditsLedgerAndOpensLoan(t *testing.T) {
	ledger := balance.New()
	pool := New(ledger)

	loan := pool.Borrow("USDT", d("1000"), d("0.00001"), t0)
	assert.Equal(t, "USDT", loan.Symbol)

	bal := ledger.Get("USDT")
	assert.True(t, bal.Available.Equal(d("1000")))
	assert.True(t, bal.Borrowed.Equal(d("1000")))
	assert.Len(t, pool.OpenLoans(), 1)
}

func TestAccrueAddsInterestToOutstandingAndBorrowed(t *testing.T) {
	ledger := balance.New()
	pool := New(ledger)
	loan := pool.Borrow("USDT", d("1000"), d("0.0001"), t0)

	pool.Accrue(t0.Add(10 * time.Second))

	updated := pool.OpenLoans()[0]
	assert.True(t, updated.Outstanding.GreaterThan(loan.Principal))

	bal := ledger.Get("USDT")
	assert.True(t, bal.Borrowed.Equal(updated.Outstanding), "borrowed=%s outstanding=%s", bal.Borrowed, updated.Outstanding)
}

func TestRepayClosesLoanWhenOutstandingReachesZero(t *testing.T) {
	ledger := balance.New()
	ledger.Deposit("USDT", d("1000"))
	pool := New(ledger)
	loan := pool.Borrow("USDT", d("500"), d("0"), t0)

	require.NoError(t, pool.Repay(loan.ID, d("500")))
	assert.Empty(t, pool.OpenLoans())

	bal := ledger.Get("USDT")
	assert.True(t, bal.Borrowed.IsZero())
}

func TestCloseAllLoansSurfacesStillOpenLoans(t *testing.T) {
	ledger := balance.New()
	pool := New(ledger)
	pool.Borrow("USDT", d("100"), d("0"), t0)

	open := pool.CloseAllLoans()
	assert.Len(t, open, 1)
	assert.Len(t, pool.OpenLoans(), 1, "CloseAllLoans must not force-repay")
}

func TestScheduleAccrualReschedulesItself(t *testing.T) {
	ledger := balance.New()
	pool := New(ledger)
	pool.Borrow("USDT", d("1000"), d("0.00001"), t0)

	q := scheduler.New(true)
	sched := func(when time.Time, cb scheduler.Callback) error { return q.Schedule(when, cb) }

	require.NoError(t, pool.ScheduleAccrual(sched, t0.Add(time.Hour), time.Hour))
	assert.Equal(t, 1, q.Len())

	due := q.PopDue(t0.Add(time.Hour))
	require.Len(t, due, 1)
	q.SetVirtualNow(t0.Add(time.Hour))
	require.NoError(t, due[0](t0.Add(time.Hour)))

	// the callback must have rescheduled itself one cadence later
	assert.Equal(t, 1, q.Len())
	next, ok := q.PeekWhen()
	require.True(t, ok)
	assert.Equal(t, t0.Add(2*time.Hour), next)
}
