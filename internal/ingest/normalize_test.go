package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/price-ingest/internal/apperror"
	"github.com/trogers1052/price-ingest/internal/models"
)

func TestNormalize(t *testing.T) {
	raw := models.RawQuote{
		Date:   "2024-01-05",
		Open:   "150.25",
		High:   "152.00",
		Low:    "149.10",
		Close:  "151.75",
		Volume: "1000000",
	}

	rec, err := Normalize(" aapl ", raw.Date, raw)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.True(t, decimal.RequireFromString("150.25").Equal(rec.Open))
	assert.True(t, decimal.RequireFromString("152").Equal(rec.High))
	assert.True(t, decimal.RequireFromString("149.10").Equal(rec.Low))
	assert.True(t, decimal.RequireFromString("151.75").Equal(rec.Close))
	assert.Equal(t, int64(1000000), rec.Volume)
}

func TestNormalizeRejectsInvalidNumbers(t *testing.T) {
	valid := models.RawQuote{Open: "1", High: "1", Low: "1", Close: "1", Volume: "1"}

	tests := []struct {
		name  string
		field string
		edit  func(q *models.RawQuote)
	}{
		{"not a number", "open", func(q *models.RawQuote) { q.Open = "N/A" }},
		{"empty", "high", func(q *models.RawQuote) { q.High = "" }},
		{"negative price", "low", func(q *models.RawQuote) { q.Low = "-0.01" }},
		{"negative volume", "volume", func(q *models.RawQuote) { q.Volume = "-5" }},
		{"fractional volume", "volume", func(q *models.RawQuote) { q.Volume = "10.5" }},
		{"garbage close", "close", func(q *models.RawQuote) { q.Close = "12,50" }},
		{"price beyond column range", "open", func(q *models.RawQuote) { q.Open = "1e13" }},
		{"price at column limit", "high", func(q *models.RawQuote) { q.High = "1000000000000" }},
		{"price finer than column scale", "close", func(q *models.RawQuote) { q.Close = "151.1234567" }},
		{"volume just past int64", "volume", func(q *models.RawQuote) { q.Volume = "9223372036854775808" }},
		{"volume max uint64", "volume", func(q *models.RawQuote) { q.Volume = "18446744073709551615" }},
		{"volume in exponent form", "volume", func(q *models.RawQuote) { q.Volume = "1e20" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.edit(&q)

			_, err := Normalize("AAPL", "2024-01-05", q)
			require.Error(t, err)

			var ne *apperror.NormalizeError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, apperror.InvalidNumeric, ne.Kind)
			assert.Equal(t, tt.field, ne.Field)
		})
	}
}

func TestNormalizeAcceptsColumnBounds(t *testing.T) {
	q := models.RawQuote{
		Open:   "999999999999.999999",
		High:   "151.100000000",
		Low:    "0",
		Close:  "1.5",
		Volume: "9223372036854775807",
	}

	rec, err := Normalize("AAPL", "2024-01-05", q)
	require.NoError(t, err)
	assert.Equal(t, "999999999999.999999", rec.Open.String())
	assert.True(t, decimal.RequireFromString("151.1").Equal(rec.High))
	assert.Equal(t, int64(math.MaxInt64), rec.Volume)
}

func TestNormalizeRejectsBadSymbolAndDate(t *testing.T) {
	q := models.RawQuote{Open: "1", High: "1", Low: "1", Close: "1", Volume: "1"}

	_, err := Normalize("  ", "2024-01-05", q)
	assert.True(t, apperror.Is(err, apperror.InvalidSymbol))

	_, err = Normalize("AAPL", "Jan 5", q)
	assert.True(t, apperror.Is(err, apperror.MalformedDate))
}
