package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types delivered over the live event channel.
const (
	EventInitialSnapshot = "initial-snapshot"
	EventPriceUpdate     = "price-update"
	EventAlertTriggered  = "alert-triggered"

	// Acknowledgements for inbound subscribe/unsubscribe messages.
	EventSubscriptionConfirmed   = "subscription-confirmed"
	EventUnsubscriptionConfirmed = "unsubscription-confirmed"
)

// Event is the JSON envelope pushed to live subscribers.
type Event struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Symbols []string    `json:"symbols,omitempty"`
}

// PriceUpdate is the payload of price-update events and of each row in the
// initial snapshot.
type PriceUpdate struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewPriceUpdate builds the wire payload for a stored observation.
func NewPriceUpdate(obs *PriceObservation) PriceUpdate {
	return PriceUpdate{
		Symbol:        obs.Symbol,
		Price:         obs.Price,
		Change:        obs.Change,
		ChangePercent: obs.ChangePercent,
		Volume:        obs.Volume,
		Timestamp:     obs.FetchedAt,
	}
}

// AlertTriggered is the payload of alert-triggered events.
type AlertTriggered struct {
	AlertID        int64           `json:"alert_id"`
	Symbol         string          `json:"symbol"`
	Kind           AlertKind       `json:"kind"`
	TriggeredValue decimal.Decimal `json:"triggered_value"`
	TriggeredAt    time.Time       `json:"triggered_at"`
}
