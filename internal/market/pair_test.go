package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	p, err := ParsePair("btc-usdt")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT", p.String())

	_, err = ParsePair("btcusdt")
	assert.Error(t, err)
}

func TestPrecisionTruncateAndRound(t *testing.T) {
	prec := Precision{BasePrecision: 4, QuotePrecision: 2}

	amount := decimal.RequireFromString("1.23456789")
	assert.Equal(t, "1.2345", prec.TruncateAmount(amount).String())

	price := decimal.RequireFromString("100.005")
	assert.Equal(t, "100.01", prec.RoundPrice(price).String())
}
