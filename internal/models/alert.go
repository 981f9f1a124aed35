package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertKind identifies the condition an alert watches for.
type AlertKind string

const (
	// AlertPriceAbove fires when the observed price exceeds the target.
	AlertPriceAbove AlertKind = "price_above"
	// AlertPriceBelow fires when the observed price drops under the target.
	AlertPriceBelow AlertKind = "price_below"
	// AlertPercentChange fires when the absolute percent change reaches the target.
	AlertPercentChange AlertKind = "percent_change"
	// AlertVolumeSpike fires when the observed volume reaches the target.
	AlertVolumeSpike AlertKind = "volume_spike"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusTriggered AlertStatus = "triggered"
	AlertStatusCancelled AlertStatus = "cancelled"
)

// Alert is a user-owned rule evaluated against new price observations.
// Once the status leaves active the alert is terminal; TriggeredAt is set
// exactly once, at the transition into triggered.
type Alert struct {
	ID           int64
	Symbol       string
	Kind         AlertKind
	TargetValue  decimal.Decimal
	CurrentValue *decimal.Decimal
	Status       AlertStatus
	Message      string
	CreatedAt    time.Time
	TriggeredAt  *time.Time
}

// IsActive reports whether the alert is still eligible for evaluation.
func (a *Alert) IsActive() bool {
	return a.Status == AlertStatusActive
}

// AlertHistoryEntry records one trigger event. Entries are created exactly
// once per trigger and never mutated.
type AlertHistoryEntry struct {
	ID               int64
	AlertID          int64
	TriggeredValue   decimal.Decimal
	TriggeredAt      time.Time
	NotificationSent bool
}
