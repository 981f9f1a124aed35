// Package models defines the core data types shared across the application.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock represents one tracked instrument.
type Stock struct {
	Symbol    string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Quote is one normalized observation from the upstream quote provider.
// It is immutable once constructed and produced only by the quote fetcher.
type Quote struct {
	Symbol        string
	Price         decimal.Decimal
	Volume        int64
	Open          decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	PreviousClose decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	FetchedAt     time.Time
}

// PriceObservation is a Quote persisted with an identity and insertion time.
// Observations are never mutated after creation, only deleted by the
// retention sweep.
type PriceObservation struct {
	Quote
	ID        int64
	CreatedAt time.Time
}
