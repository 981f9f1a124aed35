// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stocktracker/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Stocks
	UpsertStock(ctx context.Context, symbol, name string) error
	GetStock(ctx context.Context, symbol string) (*models.Stock, error)

	// Price observations
	AppendPrice(ctx context.Context, quote models.Quote) (*models.PriceObservation, error)
	LatestPrice(ctx context.Context, symbol string) (*models.PriceObservation, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Alerts
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetActiveAlerts(ctx context.Context, symbol string) ([]models.Alert, error)
	ListAlerts(ctx context.Context, symbol string, status models.AlertStatus) ([]models.Alert, error)
	GetAlert(ctx context.Context, alertID int64) (*models.Alert, error)
	TriggerAlert(ctx context.Context, alertID int64, value decimal.Decimal, at time.Time) (*models.AlertHistoryEntry, error)
	CancelAlert(ctx context.Context, alertID int64) error
	GetAlertHistory(ctx context.Context, alertID int64) ([]models.AlertHistoryEntry, error)
	MarkNotificationSent(ctx context.Context, historyID int64) error

	// Watchlists
	AddToWatchlist(ctx context.Context, symbol, listName string) error
	RemoveFromWatchlist(ctx context.Context, symbol, listName string) error
	GetWatchlist(ctx context.Context, listName string) ([]string, error)

	// Lifecycle
	Close() error
}
