package ingest

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/price-ingest/internal/apperror"
	"github.com/trogers1052/price-ingest/internal/models"
)

var (
	errNegative   = errors.New("value is negative")
	errEmpty      = errors.New("value is empty")
	errFractional = errors.New("value is not a whole number")
	errTooLarge   = errors.New("value is out of range")
	errPrecision  = errors.New("value has more than 6 decimal places")
)

// Prices are stored as NUMERIC(18,6) and volume as BIGINT.
const priceScale = 6

var (
	maxPrice  = decimal.New(1, 12) // exclusive
	maxVolume = decimal.NewFromInt(math.MaxInt64)
)

// NormalizeSymbol trims and uppercases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Normalize converts one raw quote into a canonical record. Any field that
// is not a non-negative number fails only this record.
func Normalize(symbol, date string, raw models.RawQuote) (models.PriceRecord, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return models.PriceRecord{}, &apperror.NormalizeError{Kind: apperror.InvalidSymbol, Date: date, Field: "symbol", Err: errEmpty}
	}

	d, err := ParseDate(date)
	if err != nil {
		return models.PriceRecord{}, &apperror.NormalizeError{Kind: apperror.MalformedDate, Symbol: sym, Date: date, Field: "date", Err: err}
	}

	rec := models.PriceRecord{Date: d, Symbol: sym}

	prices := []struct {
		name  string
		value models.ProviderValue
		dst   *decimal.Decimal
	}{
		{"open", raw.Open, &rec.Open},
		{"high", raw.High, &rec.High},
		{"low", raw.Low, &rec.Low},
		{"close", raw.Close, &rec.Close},
	}
	for _, f := range prices {
		v, err := parsePrice(f.value)
		if err != nil {
			return models.PriceRecord{}, &apperror.NormalizeError{Kind: apperror.InvalidNumeric, Symbol: sym, Date: date, Field: f.name, Err: err}
		}
		*f.dst = v
	}

	rec.Volume, err = parseVolume(raw.Volume)
	if err != nil {
		return models.PriceRecord{}, &apperror.NormalizeError{Kind: apperror.InvalidNumeric, Symbol: sym, Date: date, Field: "volume", Err: err}
	}

	return rec, nil
}

func parseNumber(v models.ProviderValue) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return decimal.Decimal{}, errEmpty
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, errNegative
	}
	return d, nil
}

func parsePrice(v models.ProviderValue) (decimal.Decimal, error) {
	d, err := parseNumber(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.GreaterThanOrEqual(maxPrice) {
		return decimal.Decimal{}, errTooLarge
	}
	if !d.Equal(d.Truncate(priceScale)) {
		return decimal.Decimal{}, errPrecision
	}
	return d, nil
}

func parseVolume(v models.ProviderValue) (int64, error) {
	d, err := parseNumber(v)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, errFractional
	}
	if d.GreaterThan(maxVolume) {
		return 0, errTooLarge
	}
	return d.IntPart(), nil
}
