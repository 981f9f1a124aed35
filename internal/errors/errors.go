// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrMissingAPIKey    = errors.New("upstream API key not configured")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrAlertNotFound    = errors.New("alert not found")
	ErrAlertNotActive   = errors.New("alert is not active")
	ErrStockNotFound    = errors.New("stock not found")
	ErrConnectionClosed = errors.New("connection closed")
)

// FetchError represents a failed quote fetch for one symbol. It is the only
// error the fetcher returns: transport failures, bad statuses and malformed
// payloads are all wrapped here and recovered per symbol by the scheduler.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(symbol string, err error) *FetchError {
	return &FetchError{Symbol: symbol, Err: err}
}

// EvaluationError represents a failure to evaluate a single alert. It is
// recovered per alert so sibling alerts for the same observation still run.
type EvaluationError struct {
	AlertID int64
	Symbol  string
	Reason  string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate alert %d (%s): %s", e.AlertID, e.Symbol, e.Reason)
}

// NewEvaluationError creates a new EvaluationError.
func NewEvaluationError(alertID int64, symbol, reason string) *EvaluationError {
	return &EvaluationError{AlertID: alertID, Symbol: symbol, Reason: reason}
}

// DeliveryError represents a failed event delivery to one subscriber
// connection. The broadcaster drops the connection and carries on.
type DeliveryError struct {
	ConnID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.ConnID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
