package bar

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/barstream/internal/market"
)

// requiredHeader are the columns spec.md §6 names; any other column in
// the file is ignored, per "Unknown columns are ignored."
var requiredHeader = []string{"datetime", "open", "high", "low", "close", "volume"}

// ReadCSV parses rows in the row-per-bar format of spec.md §6 for a
// fixed pair and period (the CSV itself carries no pair/period column).
// datetime must carry an explicit UTC offset; it is parsed with
// time.RFC3339, then converted to UTC so every Bar.When satisfies the
// naive-instant check in Bar.Validate.
func ReadCSV(r io.Reader, pair market.Pair, period time.Duration) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("bar: reading header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var bars []Bar
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bar: reading row %d: %w", len(bars)+1, err)
		}

		b, err := parseRow(row, idx, pair, period)
		if err != nil {
			return nil, fmt.Errorf("bar: row %d: %w", len(bars)+1, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, col := range requiredHeader {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("bar: missing required column %q", col)
		}
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int, pair market.Pair, period time.Duration) (Bar, error) {
	when, err := time.Parse(time.RFC3339, row[idx["datetime"]])
	if err != nil {
		return Bar{}, fmt.Errorf("parsing datetime: %w", err)
	}

	open, err := decimal.NewFromString(row[idx["open"]])
	if err != nil {
		return Bar{}, fmt.Errorf("parsing open: %w", err)
	}
	high, err := decimal.NewFromString(row[idx["high"]])
	if err != nil {
		return Bar{}, fmt.Errorf("parsing high: %w", err)
	}
	low, err := decimal.NewFromString(row[idx["low"]])
	if err != nil {
		return Bar{}, fmt.Errorf("parsing low: %w", err)
	}
	closePrice, err := decimal.NewFromString(row[idx["close"]])
	if err != nil {
		return Bar{}, fmt.Errorf("parsing close: %w", err)
	}
	volume, err := decimal.NewFromString(row[idx["volume"]])
	if err != nil {
		return Bar{}, fmt.Errorf("parsing volume: %w", err)
	}

	b := Bar{
		Pair:   pair,
		Period: period,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
		When:   when.UTC(),
	}
	if err := b.Validate(); err != nil {
		return Bar{}, err
	}
	return b, nil
}

// WriteCSV re-emits bars in the spec.md §6 format. Instants are written
// in UTC and each decimal keeps the number of places it carries, so
// reading the output back with ReadCSV yields bars equal to the input.
func WriteCSV(w io.Writer, bars []Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(requiredHeader); err != nil {
		return err
	}
	fixed := func(d decimal.Decimal) string {
		if exp := d.Exponent(); exp < 0 {
			return d.StringFixed(-exp)
		}
		return d.String()
	}
	for _, b := range bars {
		row := []string{
			b.When.UTC().Format(time.RFC3339),
			fixed(b.Open),
			fixed(b.High),
			fixed(b.Low),
			fixed(b.Close),
			fixed(b.Volume),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
