// Package sql implements a database-backed bar EventSource: it loads a
// pair's OHLCV history from a SQL table ordered by timestamp and wraps
// the result as a source.Source the same way an in-memory slice would
// be, for backtesting runs driven off a real bar database rather than
// a CSV file. Grounded on
// backtester/data/kline/database.LoadData/getCandleDatabaseData, which
// plays the same "load historical candles for one pair/asset/interval
// window" role — re-implemented here directly against database/sql
// rather than the teacher's sqlboiler-generated model types, since
// sqlboiler's code generation cannot run in this environment (see
// DESIGN.md).
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null"

	// Drivers registered by blank import, selected at runtime by DSN
	// scheme — mirrors database/drivers/{postgres,sqlite3} registering
	// themselves the same way in the teacher's database package.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/market"
)

// Row is a single bar row as read off the wire, before conversion to
// bar.Bar. Note carries an optional free-text annotation (e.g. which
// backfill job populated the row) — nullable the way the teacher's
// candle rows carry a nullable SourceJobID, scanned via
// volatiletech/null instead of a full sqlboiler model.
type Row struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Note      null.String
}

// Open opens a database handle for driverName ("postgres" or
// "sqlite3") and dsn. Callers are responsible for closing the returned
// *sql.DB.
func Open(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("barsource/sql: opening %s: %w", driverName, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("barsource/sql: pinging %s: %w", driverName, err)
	}
	return db, nil
}

// LoadBars reads every bar row for pair/period between start and end
// (inclusive), ordered by timestamp ascending, from the "bars" table.
// driverName ("postgres" or "sqlite3") selects the placeholder syntax
// the query is built with, matching whichever driver opened db.
func LoadBars(ctx context.Context, db *sql.DB, driverName string, pair market.Pair, period time.Duration, start, end time.Time) ([]bar.Bar, error) {
	q, err := loadBarsQuery(driverName)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, q, pair.Base, pair.Quote, int64(period.Seconds()), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("barsource/sql: querying bars: %w", err)
	}
	defer rows.Close()

	var out []bar.Bar
	for rows.Next() {
		var r Row
		var openS, highS, lowS, closeS, volS string
		if err := rows.Scan(&r.Timestamp, &openS, &highS, &lowS, &closeS, &volS, &r.Note); err != nil {
			return nil, fmt.Errorf("barsource/sql: scanning row: %w", err)
		}
		b, err := rowToBar(pair, period, r.Timestamp, openS, highS, lowS, closeS, volS)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("barsource/sql: iterating rows: %w", err)
	}
	return out, nil
}

// loadBarsQuery returns the bars query for driverName, using that
// driver's own bind-parameter syntax: lib/pq only understands
// postgres-style $N placeholders, while mattn/go-sqlite3 only
// understands plain "?" ones.
func loadBarsQuery(driverName string) (string, error) {
	switch driverName {
	case "postgres":
		return `
SELECT timestamp, open, high, low, close, volume, note
FROM bars
WHERE base = $1 AND quote = $2 AND period_seconds = $3 AND timestamp BETWEEN $4 AND $5
ORDER BY timestamp ASC`, nil
	case "sqlite3":
		return `
SELECT timestamp, open, high, low, close, volume, note
FROM bars
WHERE base = ? AND quote = ? AND period_seconds = ? AND timestamp BETWEEN ? AND ?
ORDER BY timestamp ASC`, nil
	default:
		return "", fmt.Errorf("barsource/sql: unsupported driver %q", driverName)
	}
}

func rowToBar(pair market.Pair, period time.Duration, when time.Time, openS, highS, lowS, closeS, volS string) (bar.Bar, error) {
	open, err := decimal.NewFromString(openS)
	if err != nil {
		return bar.Bar{}, fmt.Errorf("barsource/sql: parsing open: %w", err)
	}
	high, err := decimal.NewFromString(highS)
	if err != nil {
		return bar.Bar{}, fmt.Errorf("barsource/sql: parsing high: %w", err)
	}
	low, err := decimal.NewFromString(lowS)
	if err != nil {
		return bar.Bar{}, fmt.Errorf("barsource/sql: parsing low: %w", err)
	}
	closeP, err := decimal.NewFromString(closeS)
	if err != nil {
		return bar.Bar{}, fmt.Errorf("barsource/sql: parsing close: %w", err)
	}
	vol, err := decimal.NewFromString(volS)
	if err != nil {
		return bar.Bar{}, fmt.Errorf("barsource/sql: parsing volume: %w", err)
	}
	b := bar.Bar{Pair: pair, Period: period, Open: open, High: high, Low: low, Close: closeP, Volume: vol, When: when.UTC()}
	if err := b.Validate(); err != nil {
		return bar.Bar{}, err
	}
	return b, nil
}
