package sql

import (
	"context"
	"database/sql"
	"time"

	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/source"
)

// NewSource loads pair/period bars from db (opened against driverName)
// between start and end and wraps them as a backtesting source.Source,
// tagged with sourceID. Mirrors source.NewCSVBarSource's role for the
// file-backed case.
func NewSource(ctx context.Context, db *sql.DB, driverName string, pair market.Pair, period time.Duration, start, end time.Time, sourceID uint64) (*source.Slice, error) {
	bars, err := LoadBars(ctx, db, driverName, pair, period, start, end)
	if err != nil {
		return nil, err
	}
	return source.NewSliceBarSource(bars, sourceID), nil
}
