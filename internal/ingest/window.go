// Package ingest turns a provider's raw daily series into canonical price
// records: FilterWindow bounds the series to a trailing window of calendar
// days and Normalize coerces each kept entry into a typed record.
package ingest

import (
	"fmt"
	"sort"
	"time"

	"github.com/trogers1052/price-ingest/internal/apperror"
	"github.com/trogers1052/price-ingest/internal/models"
)

// Cutoff returns the first calendar day inside a window of windowDays
// ending on now's calendar date. Time of day and zone offsets are ignored.
func Cutoff(now time.Time, windowDays int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-windowDays, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a provider date as a UTC calendar date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(models.DateLayout, s)
}

// FilterWindow keeps the entries dated from Cutoff(now, windowDays) through
// now's calendar date, both inclusive, ordered oldest first. Entries whose
// date cannot be parsed are returned as MalformedDate errors and do not
// affect the rest of the series.
func FilterWindow(series models.DailySeries, now time.Time, windowDays int) ([]models.RawQuote, []error) {
	cutoff := Cutoff(now, windowDays)
	today := Cutoff(now, 0)

	kept := make([]models.RawQuote, 0, len(series))
	var dropped []error

	for key, q := range series {
		if q.Date == "" {
			q.Date = key
		}
		d, err := ParseDate(q.Date)
		if err != nil {
			dropped = append(dropped, apperror.NewFetchError(apperror.MalformedDate, "", fmt.Errorf("unparseable date %q: %w", q.Date, err)))
			continue
		}
		if d.Before(cutoff) || d.After(today) {
			continue
		}
		kept = append(kept, q)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Date < kept[j].Date })
	return kept, dropped
}
