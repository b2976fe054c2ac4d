// Package apperror defines the error kinds raised while ingesting prices.
// Every kind has a fixed scope of effect:
//
//	MalformedDate, InvalidNumeric,
//	InvalidSymbol                       drop one record
//	Transport, MalformedResponse,
//	RateLimited                         drop one symbol's contribution
//	Transactional                       fail the run
//	Missing                             fail the run before any I/O
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Transport         Kind = "TRANSPORT"
	MalformedResponse Kind = "MALFORMED_RESPONSE"
	RateLimited       Kind = "RATE_LIMITED"
	MalformedDate     Kind = "MALFORMED_DATE"
	InvalidNumeric    Kind = "INVALID_NUMERIC"
	InvalidSymbol     Kind = "INVALID_SYMBOL"
	Transactional     Kind = "TRANSACTIONAL"
	Missing           Kind = "MISSING"
)

// FetchError is raised by the provider client and the window filter
type FetchError struct {
	Kind   Kind
	Symbol string
	Err    error
}

func NewFetchError(kind Kind, symbol string, err error) *FetchError {
	return &FetchError{Kind: kind, Symbol: symbol, Err: err}
}

func (e *FetchError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s failed (%s): %v", e.Symbol, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizeError is raised when a single raw quote cannot become a record
type NormalizeError struct {
	Kind   Kind
	Symbol string
	Date   string
	Field  string
	Err    error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize %s %s failed (%s): field %q: %v", e.Symbol, e.Date, e.Kind, e.Field, e.Err)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// ApplyError wraps a store failure that rolled back the whole batch
type ApplyError struct {
	Kind Kind
	Err  error
}

func NewApplyError(err error) *ApplyError {
	return &ApplyError{Kind: Transactional, Err: err}
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply batch failed (%s): %v", e.Kind, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// ConfigError names a required setting that is absent or unusable
type ConfigError struct {
	Kind  Kind
	Field string
}

func NewMissing(field string) *ConfigError {
	return &ConfigError{Kind: Missing, Field: field}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Kind, e.Field)
}

// KindOf returns the kind of the first typed error found in err's chain
func KindOf(err error) (Kind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	var ne *NormalizeError
	if errors.As(err, &ne) {
		return ne.Kind, true
	}
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
