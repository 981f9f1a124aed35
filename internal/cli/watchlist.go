package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newWatchlistCmd creates the watchlist command group.
func newWatchlistCmd(app *App) *cobra.Command {
	var listName string

	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Watchlist management",
	}

	addCmd := &cobra.Command{
		Use:   "add SYMBOL...",
		Short: "Add symbols to a watchlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}
			output := NewOutput(cmd)
			for _, arg := range args {
				symbol := strings.ToUpper(arg)
				if err := app.Store.AddToWatchlist(cmd.Context(), symbol, listName); err != nil {
					return err
				}
				if !output.IsJSON() {
					output.Success("Added %s", symbol)
				}
			}
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove SYMBOL...",
		Short: "Remove symbols from a watchlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}
			output := NewOutput(cmd)
			for _, arg := range args {
				symbol := strings.ToUpper(arg)
				if err := app.Store.RemoveFromWatchlist(cmd.Context(), symbol, listName); err != nil {
					return err
				}
				if !output.IsJSON() {
					output.Success("Removed %s", symbol)
				}
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show a watchlist with latest stored prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}

			symbols, err := app.Store.GetWatchlist(cmd.Context(), listName)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(symbols)
			}
			if len(symbols) == 0 {
				output.Dim("Watchlist is empty")
				return nil
			}

			for _, symbol := range symbols {
				obs, err := app.Store.LatestPrice(cmd.Context(), symbol)
				if err != nil {
					return err
				}
				if obs == nil {
					output.Printf("%s %s\n", PadRight(symbol, 8), output.ColoredString(ColorDim, "no data"))
					continue
				}
				change := FormatChange(obs.Change, obs.ChangePercent)
				if obs.Change.IsNegative() {
					change = output.Red(change)
				} else {
					change = output.Green(change)
				}
				output.Printf("%s %s  %s\n", PadRight(symbol, 8), PadLeft(FormatUSD(obs.Price), 12), change)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&listName, "list", "default", "watchlist name")
	cmd.AddCommand(addCmd, removeCmd, showCmd)
	return cmd
}
