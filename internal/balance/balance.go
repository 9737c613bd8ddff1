// Package balance implements AccountBalances (spec.md §4.7): per-symbol
// available/hold/borrowed tracking with transactional hold/release and
// transfer operations. Grounded on
// thrasher-corp/gocryptotrader/backtester/funding's Pair/Item funds
// ledger (IncreaseAvailable/Release/Reserve around a decimal balance),
// generalized from a fixed base/quote pair to an arbitrary symbol set
// since spec.md §4.7 tracks balances per symbol rather than per pair.
package balance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/xerrors"
)

// Balance is a snapshot of one symbol's ledger line. Equity is
// available + hold − borrowed.
type Balance struct {
	Symbol    string
	Available decimal.Decimal
	Hold      decimal.Decimal
	Borrowed  decimal.Decimal
}

// Equity returns available + hold − borrowed.
func (b Balance) Equity() decimal.Decimal {
	return b.Available.Add(b.Hold).Sub(b.Borrowed)
}

type line struct {
	available decimal.Decimal
	hold      decimal.Decimal
	borrowed  decimal.Decimal
}

// Ledger is AccountBalances: a per-symbol set of lines mutated only
// from the dispatcher's single logical task (spec.md §5 "Shared-resource
// policy" — no locking).
type Ledger struct {
	lines map[string]*line
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{lines: make(map[string]*line)}
}

func (l *Ledger) entry(symbol string) *line {
	e, ok := l.lines[symbol]
	if !ok {
		e = &line{available: decimal.Zero, hold: decimal.Zero, borrowed: decimal.Zero}
		l.lines[symbol] = e
	}
	return e
}

// Deposit credits symbol's available balance unconditionally. Used to
// seed starting capital; never fails.
func (l *Ledger) Deposit(symbol string, amount decimal.Decimal) {
	l.entry(symbol).available = l.entry(symbol).available.Add(amount)
}

// Get returns a snapshot of symbol's current balance.
func (l *Ledger) Get(symbol string) Balance {
	e := l.entry(symbol)
	return Balance{Symbol: symbol, Available: e.available, Hold: e.hold, Borrowed: e.borrowed}
}

// Hold moves amount from available to hold, e.g. on order placement.
// Fails with ErrInsufficientBalance (no state change) if available is
// short.
func (l *Ledger) Hold(symbol string, amount decimal.Decimal) error {
	e := l.entry(symbol)
	if e.available.LessThan(amount) {
		return fmt.Errorf("balance: hold %s of %s: %w", amount, symbol, xerrors.ErrInsufficientBalance)
	}
	e.available = e.available.Sub(amount)
	e.hold = e.hold.Add(amount)
	return nil
}

// Release moves amount from hold back to available, e.g. on order
// cancellation or after a fill consumes less than was held.
func (l *Ledger) Release(symbol string, amount decimal.Decimal) error {
	e := l.entry(symbol)
	if e.hold.LessThan(amount) {
		return fmt.Errorf("balance: release %s of %s: %w", amount, symbol, xerrors.ErrInsufficientBalance)
	}
	e.hold = e.hold.Sub(amount)
	e.available = e.available.Add(amount)
	return nil
}

// Transfer atomically debits fromAmt of fromSymbol's hold and credits
// toAmt of toSymbol's available — the fill settlement step of spec.md
// §4.6 step 5. Either both lines commit or neither does.
func (l *Ledger) Transfer(fromSymbol string, fromAmt decimal.Decimal, toSymbol string, toAmt decimal.Decimal) error {
	from := l.entry(fromSymbol)
	if from.hold.LessThan(fromAmt) {
		return fmt.Errorf("balance: transfer debit %s of %s: %w", fromAmt, fromSymbol, xerrors.ErrInsufficientBalance)
	}
	from.hold = from.hold.Sub(fromAmt)
	l.entry(toSymbol).available = l.entry(toSymbol).available.Add(toAmt)
	log.Debugf(log.Balances, "transfer: debited %s %s (hold), credited %s %s (available)", fromAmt, fromSymbol, toAmt, toSymbol)
	return nil
}

// Borrow credits symbol's available balance and records the debt
// against borrowed, used by the lending pool when a loan is drawn down.
func (l *Ledger) Borrow(symbol string, amount decimal.Decimal) {
	e := l.entry(symbol)
	e.available = e.available.Add(amount)
	e.borrowed = e.borrowed.Add(amount)
}

// Repay debits symbol's available balance and reduces borrowed by the
// same amount. Fails if available is short.
func (l *Ledger) Repay(symbol string, amount decimal.Decimal) error {
	e := l.entry(symbol)
	if e.available.LessThan(amount) {
		return fmt.Errorf("balance: repay %s of %s: %w", amount, symbol, xerrors.ErrInsufficientBalance)
	}
	e.available = e.available.Sub(amount)
	e.borrowed = e.borrowed.Sub(amount)
	return nil
}

// AccrueInterest adds amount directly to symbol's borrowed balance
// without touching available, used by the lending pool's periodic
// accrual callback.
func (l *Ledger) AccrueInterest(symbol string, amount decimal.Decimal) {
	l.entry(symbol).borrowed = l.entry(symbol).borrowed.Add(amount)
}
