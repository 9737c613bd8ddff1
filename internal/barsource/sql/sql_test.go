package sql

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/barstream/internal/market"
)

var btcUSDT = market.NewPair("BTC", "USDT")
var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRowToBarParsesDecimalColumns(t *testing.T) {
	b, err := rowToBar(btcUSDT, time.Minute, t0, "100", "110", "90", "105", "10")
	require.NoError(t, err)
	assert.True(t, b.Open.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, btcUSDT, b.Pair)
	assert.Equal(t, time.Minute, b.Period)
}

func TestRowToBarRejectsMalformedDecimal(t *testing.T) {
	_, err := rowToBar(btcUSDT, time.Minute, t0, "not-a-number", "110", "90", "105", "10")
	require.Error(t, err)
}

func TestRowToBarRejectsInvariantViolation(t *testing.T) {
	// high < low is invalid per bar.Validate.
	_, err := rowToBar(btcUSDT, time.Minute, t0, "100", "90", "110", "95", "10")
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("not-a-real-driver", "whatever")
	require.Error(t, err)
}

func TestLoadBarsQueryUsesDriverSpecificPlaceholders(t *testing.T) {
	pg, err := loadBarsQuery("postgres")
	require.NoError(t, err)
	assert.Contains(t, pg, "$1")
	assert.NotContains(t, pg, "?")

	lite, err := loadBarsQuery("sqlite3")
	require.NoError(t, err)
	assert.Contains(t, lite, "?")
	assert.NotContains(t, lite, "$1")
}

func TestLoadBarsQueryRejectsUnknownDriver(t *testing.T) {
	_, err := loadBarsQuery("not-a-real-driver")
	require.Error(t, err)
}
