package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the provider's calendar date format
const DateLayout = "2006-01-02"

// ProviderValue holds a provider field as text whether it arrived as a JSON
// string or a bare JSON number.
type ProviderValue string

// UnmarshalJSON accepts "150.25", 150.25 and null
func (v *ProviderValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = ProviderValue(s)
		return nil
	}
	*v = ProviderValue(data)
	return nil
}

// RawQuote is a provider's uninterpreted daily entry
type RawQuote struct {
	Date   string        `json:"-"`
	Open   ProviderValue `json:"1. open"`
	High   ProviderValue `json:"2. high"`
	Low    ProviderValue `json:"3. low"`
	Close  ProviderValue `json:"4. close"`
	Volume ProviderValue `json:"5. volume"`
}

// DailySeries maps provider date strings to their raw quotes
type DailySeries map[string]RawQuote

// PriceRecord is the canonical daily OHLCV row keyed by (date, symbol)
type PriceRecord struct {
	Date   time.Time       `json:"date"`
	Symbol string          `json:"symbol"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// RecordKey is the natural and primary key of a PriceRecord
type RecordKey struct {
	Date   string
	Symbol string
}

// Key returns the record's (date, symbol) identity
func (p PriceRecord) Key() RecordKey {
	return RecordKey{Date: p.Date.Format(DateLayout), Symbol: p.Symbol}
}

// Batch is every record gathered for one run
type Batch []PriceRecord

// Dedupe returns a copy of the batch holding one record per key. A later
// occurrence of a key replaces the earlier one in place.
func (b Batch) Dedupe() Batch {
	out := make(Batch, 0, len(b))
	index := make(map[RecordKey]int, len(b))
	for _, r := range b {
		k := r.Key()
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// ApplyReport is a best-effort account of one applied batch
type ApplyReport struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Total returns the number of keys written
func (r ApplyReport) Total() int {
	return r.Inserted + r.Updated
}
