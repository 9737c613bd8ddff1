// Package report aggregates a completed run into a printable summary:
// realized P&L, max drawdown, fill counts, and outstanding loans.
// Grounded on backtester/eventhandlers/statistics.Statistic (the
// teacher's running-totals-plus-final-printout shape) and
// backtester/report's GenerateReport, trimmed from the teacher's HTML
// chart output (out of scope — no charting) to a CLI text summary,
// per SPEC_FULL.md's supplemented "Run statistics / report printer"
// feature.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/quantforge/barstream/internal/lending"
	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/matching"
)

// PairStats accumulates fill and P&L totals for a single pair over the
// run.
type PairStats struct {
	Pair         market.Pair
	BuyOrders    int64
	SellOrders   int64
	TotalFees    decimal.Decimal
	RealizedPnL  decimal.Decimal
	EquityCurve  []decimal.Decimal
	peakEquity   decimal.Decimal
	maxDrawdown  decimal.Decimal
	lastBuyPrice decimal.Decimal
	lastBuyAmt   decimal.Decimal
}

// Stats is the run-wide statistics aggregator: one Record call per
// fill, one Snapshot call per bar (to track drawdown), a final
// Summary/Fprint at the end of the run.
type Stats struct {
	StrategyName string
	RunID        string
	StartDate    time.Time
	EndDate      time.Time

	pairs map[market.Pair]*PairStats
	order []market.Pair
}

// New creates an empty Stats aggregator for a run named name, tagged
// with runID (callers generate this once per invocation, e.g. via
// gofrs/uuid, so repeated runs over the same strategy/config can be
// told apart in saved report output).
func New(name, runID string) *Stats {
	return &Stats{StrategyName: name, RunID: runID, pairs: make(map[market.Pair]*PairStats)}
}

func (s *Stats) pairStats(pair market.Pair) *PairStats {
	if ps, ok := s.pairs[pair]; ok {
		return ps
	}
	ps := &PairStats{Pair: pair}
	s.pairs[pair] = ps
	s.order = append(s.order, pair)
	return ps
}

// Record folds a single fill into the running totals. Realized P&L is
// computed on a simple last-buy basis: a sell closes out
// against the most recent buy's price for the same pair. This is a
// reporting-only approximation — it never feeds back into matching or
// balances.
func (s *Stats) Record(when time.Time, f matching.Fill) {
	if s.StartDate.IsZero() || when.Before(s.StartDate) {
		s.StartDate = when
	}
	if when.After(s.EndDate) {
		s.EndDate = when
	}

	ps := s.pairStats(f.Pair)
	ps.TotalFees = ps.TotalFees.Add(f.Fee)

	switch f.Side {
	case matching.Buy:
		ps.BuyOrders++
		ps.lastBuyPrice = f.Price
		ps.lastBuyAmt = f.Amount
	case matching.Sell:
		ps.SellOrders++
		if !ps.lastBuyAmt.IsZero() {
			pnl := f.Price.Sub(ps.lastBuyPrice).Mul(decimal.Min(f.Amount, ps.lastBuyAmt))
			ps.RealizedPnL = ps.RealizedPnL.Add(pnl)
		}
	}
}

// Snapshot records equity at a point in time to track drawdown.
func (s *Stats) Snapshot(pair market.Pair, equity decimal.Decimal) {
	ps := s.pairStats(pair)
	ps.EquityCurve = append(ps.EquityCurve, equity)
	if equity.GreaterThan(ps.peakEquity) {
		ps.peakEquity = equity
	}
	if !ps.peakEquity.IsZero() {
		drawdown := ps.peakEquity.Sub(equity).Div(ps.peakEquity)
		if drawdown.GreaterThan(ps.maxDrawdown) {
			ps.maxDrawdown = drawdown
		}
	}
}

// Fprint writes a locale-formatted plain-text summary of the run to w,
// including any loans still open in pool (may be nil).
func (s *Stats) Fprint(w io.Writer, pool *lending.Pool) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "run: %s (id=%s)\n", s.StrategyName, s.RunID)
	if !s.StartDate.IsZero() {
		p.Fprintf(w, "period: %s -> %s\n", s.StartDate.Format(time.RFC3339), s.EndDate.Format(time.RFC3339))
	}

	pairs := append([]market.Pair(nil), s.order...)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })

	for _, pair := range pairs {
		ps := s.pairs[pair]
		p.Fprintf(w, "\n%s\n", pair)
		p.Fprintf(w, "  buys=%d sells=%d fees=%s realized_pnl=%s max_drawdown=%.4f%%\n",
			ps.BuyOrders, ps.SellOrders, ps.TotalFees.StringFixed(2), ps.RealizedPnL.StringFixed(2),
			ps.maxDrawdown.Mul(decimal.NewFromInt(100)).InexactFloat64())
	}

	if pool != nil {
		open := pool.OpenLoans()
		if len(open) > 0 {
			p.Fprintf(w, "\noutstanding loans:\n")
			for _, loan := range open {
				p.Fprintf(w, "  #%d %s outstanding=%s\n", loan.ID, loan.Symbol, loan.Outstanding.StringFixed(8))
			}
		}
	}
}

// Summary returns the printable summary as a string, for callers that
// don't want to manage an io.Writer directly.
func (s *Stats) Summary(pool *lending.Pool) string {
	var buf writerBuffer
	s.Fprint(&buf, pool)
	return string(buf)
}

type writerBuffer []byte

func (b *writerBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

var _ fmt.Stringer = (*Stats)(nil)

func (s *Stats) String() string { return s.Summary(nil) }
