// Package lending implements the optional LendingPool of spec.md §4.8:
// margin borrowing against AccountBalances with interest accrued on a
// dispatcher-scheduled cadence. Grounded on
// thrasher-corp/gocryptotrader/backtester/funding's reserve/release
// ledger idiom (funding.Pair wraps a balance and exposes
// Reserve/Release/IncreaseAvailable) — the teacher's funding package
// has no borrowing or interest concept, so the loan bookkeeping itself
// is new code following that same small-struct-plus-map style.
package lending

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/balance"
	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/scheduler"
	"github.com/quantforge/barstream/internal/xerrors"
)

// Loan is an open (or closed) borrow against one symbol.
type Loan struct {
	ID          uint64
	Symbol      string
	Principal   decimal.Decimal
	Outstanding decimal.Decimal
	RatePerSec  decimal.Decimal
	OpenedAt    time.Time
	LastAccrual time.Time
	Closed      bool
}

// Pool is the LendingPool: it credits borrowed funds into an
// AccountBalances ledger and accrues interest against the outstanding
// balance over time.
type Pool struct {
	balances *balance.Ledger
	loans    map[uint64]*Loan
	nextID   uint64
}

// New creates an empty Pool over an existing balance ledger.
func New(balances *balance.Ledger) *Pool {
	return &Pool{balances: balances, loans: make(map[uint64]*Loan)}
}

// Borrow credits amount of symbol into the ledger's available balance
// and opens a Loan accruing interest at ratePerSec (a per-second rate
// applied at each accrual to the loan's Outstanding, which includes
// interest added by earlier accruals).
func (p *Pool) Borrow(symbol string, amount, ratePerSec decimal.Decimal, at time.Time) *Loan {
	p.nextID++
	loan := &Loan{
		ID:          p.nextID,
		Symbol:      symbol,
		Principal:   amount,
		Outstanding: amount,
		RatePerSec:  ratePerSec,
		OpenedAt:    at,
		LastAccrual: at,
	}
	p.loans[loan.ID] = loan
	p.balances.Borrow(symbol, amount)
	log.Infof(log.Lending, "opened loan %d: %s %s at %s/s", loan.ID, amount, symbol, ratePerSec)
	return loan
}

// Repay pays down loan by amount, debiting the ledger's available
// balance. Repaying more than Outstanding is an error.
func (p *Pool) Repay(loanID uint64, amount decimal.Decimal) error {
	loan, ok := p.loans[loanID]
	if !ok {
		return xerrors.ErrLoanNotFound
	}
	if amount.GreaterThan(loan.Outstanding) {
		return xerrors.ErrInvalidOrder
	}
	if err := p.balances.Repay(loan.Symbol, amount); err != nil {
		return err
	}
	loan.Outstanding = loan.Outstanding.Sub(amount)
	if loan.Outstanding.IsZero() {
		loan.Closed = true
	}
	return nil
}

// Accrue charges interest on every open loan for the elapsed time
// since its last accrual, up to until. Interest is added to both the
// loan's Outstanding balance and the ledger's borrowed balance for
// that symbol (spec.md §4.8: "accruing interest per unit time").
func (p *Pool) Accrue(until time.Time) {
	for _, loan := range p.loans {
		if loan.Closed {
			continue
		}
		elapsed := until.Sub(loan.LastAccrual)
		if elapsed <= 0 {
			continue
		}
		interest := loan.Outstanding.Mul(loan.RatePerSec).Mul(decimal.NewFromFloat(elapsed.Seconds()))
		if interest.IsZero() {
			loan.LastAccrual = until
			continue
		}
		loan.Outstanding = loan.Outstanding.Add(interest)
		p.balances.AccrueInterest(loan.Symbol, interest)
		loan.LastAccrual = until
	}
}

// OpenLoans returns a snapshot of every loan that has not been fully
// repaid.
func (p *Pool) OpenLoans() []Loan {
	var out []Loan
	for _, loan := range p.loans {
		if !loan.Closed {
			out = append(out, *loan)
		}
	}
	return out
}

// CloseAllLoans is the shutdown guard of spec.md §4.8: it runs at
// dispatcher shutdown and returns a snapshot of every loan still open,
// for reporting, without forcing repayment.
func (p *Pool) CloseAllLoans() []Loan {
	open := p.OpenLoans()
	if len(open) > 0 {
		log.Warnf(log.Lending, "%d loan(s) still open at shutdown", len(open))
	}
	return open
}

// ScheduleAccrual registers a self-rescheduling callback on sched that
// calls Accrue every cadence starting at first, wiring the pool's
// interest accrual to the dispatcher's scheduler queue per spec.md
// §4.8 ("Accrual is driven by a dispatcher-scheduled callback at a
// fixed cadence"). sched is the dispatcher's Schedule method — taken as
// a plain function value so this package never imports internal/
// dispatcher directly.
func (p *Pool) ScheduleAccrual(sched func(when time.Time, cb scheduler.Callback) error, first time.Time, cadence time.Duration) error {
	var tick scheduler.Callback
	tick = func(due time.Time) error {
		p.Accrue(due)
		return sched(due.Add(cadence), tick)
	}
	return sched(first, tick)
}
