// Package alerts evaluates stored price observations against user alerts.
package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "stocktracker/internal/errors"
	"stocktracker/internal/models"
	"stocktracker/internal/store"
)

// Transition records one alert moving from active to triggered.
type Transition struct {
	Alert   models.Alert
	Value   decimal.Decimal
	History models.AlertHistoryEntry
}

// Event builds the wire payload announcing this transition.
func (t Transition) Event() models.Event {
	return models.Event{
		Type: models.EventAlertTriggered,
		Data: models.AlertTriggered{
			AlertID:        t.Alert.ID,
			Symbol:         t.Alert.Symbol,
			Kind:           t.Alert.Kind,
			TriggeredValue: t.Value,
			TriggeredAt:    t.History.TriggeredAt,
		},
	}
}

// Evaluator scans the active alerts for an observation's stock and fires the
// ones whose condition is met. An alert fires at most once: the store-level
// transition out of active is the gate, so re-evaluating an observation
// against an already-triggered alert yields nothing.
type Evaluator struct {
	store  store.DataStore
	logger zerolog.Logger
}

// NewEvaluator creates a new alert evaluator.
func NewEvaluator(dataStore store.DataStore, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		store:  dataStore,
		logger: logger.With().Str("component", "alerts").Logger(),
	}
}

// Evaluate checks every active alert for the observation's stock. A failure
// on one alert is logged and skipped so its siblings still run; the returned
// error covers only the inability to list alerts at all.
func (e *Evaluator) Evaluate(ctx context.Context, obs *models.PriceObservation) ([]Transition, error) {
	active, err := e.store.GetActiveAlerts(ctx, obs.Symbol)
	if err != nil {
		return nil, fmt.Errorf("listing alerts for %s: %w", obs.Symbol, err)
	}

	var transitions []Transition
	for i := range active {
		alert := active[i]

		fired, value, err := conditionMet(&alert, obs)
		if err != nil {
			e.logger.Error().Err(err).
				Int64("alert_id", alert.ID).
				Str("symbol", alert.Symbol).
				Msg("Skipping alert evaluation")
			continue
		}
		if !fired {
			continue
		}

		entry, err := e.store.TriggerAlert(ctx, alert.ID, value, obs.FetchedAt)
		if err != nil {
			// Lost the race with another trigger path; the alert already
			// left active and must not fire again.
			if errors.Is(err, apperrors.ErrAlertNotActive) {
				continue
			}
			e.logger.Error().Err(err).
				Int64("alert_id", alert.ID).
				Msg("Failed to persist alert trigger")
			continue
		}

		alert.Status = models.AlertStatusTriggered
		triggeredAt := entry.TriggeredAt
		alert.TriggeredAt = &triggeredAt
		v := value
		alert.CurrentValue = &v

		e.logger.Info().
			Int64("alert_id", alert.ID).
			Str("symbol", alert.Symbol).
			Str("kind", string(alert.Kind)).
			Str("value", value.String()).
			Msg("Alert triggered")

		transitions = append(transitions, Transition{
			Alert:   alert,
			Value:   value,
			History: *entry,
		})
	}

	return transitions, nil
}

// conditionMet reports whether the alert fires for the observation and which
// value crossed the threshold. Price comparisons are exact decimal
// comparisons: price-above and price-below are strict, percent-change and
// volume-spike are inclusive.
func conditionMet(alert *models.Alert, obs *models.PriceObservation) (bool, decimal.Decimal, error) {
	switch alert.Kind {
	case models.AlertPriceAbove:
		return obs.Price.GreaterThan(alert.TargetValue), obs.Price, nil
	case models.AlertPriceBelow:
		return obs.Price.LessThan(alert.TargetValue), obs.Price, nil
	case models.AlertPercentChange:
		return obs.ChangePercent.Abs().GreaterThanOrEqual(alert.TargetValue), obs.ChangePercent, nil
	case models.AlertVolumeSpike:
		volume := decimal.NewFromInt(obs.Volume)
		return volume.GreaterThanOrEqual(alert.TargetValue), volume, nil
	default:
		return false, decimal.Zero, apperrors.NewEvaluationError(alert.ID, alert.Symbol,
			fmt.Sprintf("unknown alert kind %q", alert.Kind))
	}
}
