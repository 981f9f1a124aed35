package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stocktracker/internal/models"
)

// newAlertCmd creates the alert command group.
func newAlertCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Price alert management",
		Long:  "Create, list, trigger and cancel price alerts.",
	}

	cmd.AddCommand(newAlertCreateCmd(app))
	cmd.AddCommand(newAlertListCmd(app))
	cmd.AddCommand(newAlertTriggerCmd(app))
	cmd.AddCommand(newAlertCancelCmd(app))
	cmd.AddCommand(newAlertHistoryCmd(app))

	return cmd
}

func newAlertCreateCmd(app *App) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "create SYMBOL KIND VALUE",
		Short: "Create a new alert",
		Long: `Creates an active alert for a symbol.

Kinds:
  price_above     fires when price exceeds VALUE
  price_below     fires when price drops below VALUE
  percent_change  fires when the daily change reaches VALUE percent in either direction
  volume_spike    fires when volume reaches VALUE shares`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}

			kind, err := parseAlertKind(args[1])
			if err != nil {
				return err
			}
			target, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid target value %q: %w", args[2], err)
			}

			alert := &models.Alert{
				Symbol:      strings.ToUpper(args[0]),
				Kind:        kind,
				TargetValue: target,
				Status:      models.AlertStatusActive,
				Message:     message,
				CreatedAt:   time.Now().UTC(),
			}
			if err := app.Store.SaveAlert(cmd.Context(), alert); err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(alert)
			}
			output.Success("Alert %d created: %s %s %s", alert.ID, alert.Symbol, alert.Kind, alert.TargetValue.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "optional message delivered when the alert fires")
	return cmd
}

func newAlertListCmd(app *App) *cobra.Command {
	var symbol, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}

			list, err := app.Store.ListAlerts(cmd.Context(), strings.ToUpper(symbol), models.AlertStatus(status))
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(list)
			}
			if len(list) == 0 {
				output.Dim("No alerts found")
				return nil
			}

			output.Bold("%s %s %s %s %s %s",
				PadLeft("ID", 5), PadRight("SYMBOL", 8), PadRight("KIND", 15),
				PadLeft("TARGET", 12), PadRight("STATUS", 10), "CREATED")
			for _, a := range list {
				line := fmt.Sprintf("%s %s %s %s %s %s",
					PadLeft(strconv.FormatInt(a.ID, 10), 5),
					PadRight(a.Symbol, 8),
					PadRight(string(a.Kind), 15),
					PadLeft(a.TargetValue.String(), 12),
					PadRight(string(a.Status), 10),
					FormatDateTime(a.CreatedAt))
				switch a.Status {
				case models.AlertStatusTriggered:
					output.Println(output.Yellow(line))
				case models.AlertStatusCancelled:
					output.Println(output.Red(line))
				default:
					output.Println(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "filter by symbol")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active, triggered, cancelled)")
	return cmd
}

// newAlertTriggerCmd creates the manual trigger command. The trigger value
// defaults to the latest stored price for the alert's symbol.
func newAlertTriggerCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger ID [VALUE]",
		Short: "Manually trigger an active alert",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}

			alertID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid alert id %q", args[0])
			}

			var value decimal.Decimal
			if len(args) == 2 {
				value, err = decimal.NewFromString(args[1])
				if err != nil {
					return fmt.Errorf("invalid trigger value %q: %w", args[1], err)
				}
			} else {
				alert, err := app.Store.GetAlert(cmd.Context(), alertID)
				if err != nil {
					return err
				}
				obs, err := app.Store.LatestPrice(cmd.Context(), alert.Symbol)
				if err != nil {
					return err
				}
				if obs == nil {
					return fmt.Errorf("no stored price for %s, pass an explicit trigger value", alert.Symbol)
				}
				value = obs.Price
			}

			entry, err := app.Store.TriggerAlert(cmd.Context(), alertID, value, time.Now().UTC())
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(entry)
			}
			output.Success("Alert %d triggered at %s", alertID, entry.TriggeredValue.String())
			return nil
		},
	}
}

func newAlertCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an active alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}

			alertID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid alert id %q", args[0])
			}
			if err := app.Store.CancelAlert(cmd.Context(), alertID); err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"id": alertID, "status": models.AlertStatusCancelled})
			}
			output.Success("Alert %d cancelled", alertID)
			return nil
		},
	}
}

func newAlertHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Show the trigger history of an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}

			alertID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid alert id %q", args[0])
			}

			entries, err := app.Store.GetAlertHistory(cmd.Context(), alertID)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Dim("No trigger history for alert %d", alertID)
				return nil
			}
			for _, e := range entries {
				output.Printf("%s  value %s\n", FormatDateTime(e.TriggeredAt), e.TriggeredValue.String())
			}
			return nil
		},
	}
}

func parseAlertKind(s string) (models.AlertKind, error) {
	switch models.AlertKind(strings.ToLower(s)) {
	case models.AlertPriceAbove:
		return models.AlertPriceAbove, nil
	case models.AlertPriceBelow:
		return models.AlertPriceBelow, nil
	case models.AlertPercentChange:
		return models.AlertPercentChange, nil
	case models.AlertVolumeSpike:
		return models.AlertVolumeSpike, nil
	default:
		return "", fmt.Errorf("unknown alert kind %q", s)
	}
}
