package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stocktracker/internal/models"
	"stocktracker/internal/store"
)

const deliveryTimeout = 5 * time.Second

// Dispatcher watches the published event flow and turns alert-triggered
// events into out-of-band notifications. After a successful delivery it
// marks the alert's newest history entry as notified, so a restart never
// re-announces old triggers.
//
// Dispatcher implements the scheduler's publisher contract and is meant to
// sit next to the broadcast hub in a fan-out.
type Dispatcher struct {
	store    store.DataStore
	notifier *MultiNotifier
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given notifier.
func NewDispatcher(dataStore store.DataStore, notifier *MultiNotifier, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    dataStore,
		notifier: notifier,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// Publish inspects one pipeline event. Non-alert events are ignored.
func (d *Dispatcher) Publish(ev models.Event) {
	if ev.Type != models.EventAlertTriggered {
		return
	}
	payload, ok := ev.Data.(models.AlertTriggered)
	if !ok {
		d.logger.Warn().Msg("Alert event carried an unexpected payload type")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	n := Notification{
		Symbol:    payload.Symbol,
		Title:     "Alert triggered",
		Message:   d.describe(ctx, payload),
		Timestamp: payload.TriggeredAt,
	}
	if err := d.notifier.Send(ctx, n); err != nil {
		d.logger.Error().Err(err).Int64("alert_id", payload.AlertID).Msg("Failed to deliver alert notification")
		return
	}

	d.markNotified(ctx, payload.AlertID)
}

// describe builds the notification body, preferring the user's own message
// when the alert carries one.
func (d *Dispatcher) describe(ctx context.Context, payload models.AlertTriggered) string {
	if alert, err := d.store.GetAlert(ctx, payload.AlertID); err == nil && alert.Message != "" {
		return alert.Message
	}
	return fmt.Sprintf("%s %s at %s", payload.Symbol, payload.Kind, payload.TriggeredValue.String())
}

// markNotified flags the newest history entry for the alert.
func (d *Dispatcher) markNotified(ctx context.Context, alertID int64) {
	entries, err := d.store.GetAlertHistory(ctx, alertID)
	if err != nil || len(entries) == 0 {
		d.logger.Warn().Err(err).Int64("alert_id", alertID).Msg("Could not load history to mark notification")
		return
	}
	if err := d.store.MarkNotificationSent(ctx, entries[0].ID); err != nil {
		d.logger.Warn().Err(err).Int64("history_id", entries[0].ID).Msg("Could not mark notification as sent")
	}
}
