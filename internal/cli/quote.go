package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stocktracker/internal/models"
	"stocktracker/internal/quote"
	"stocktracker/pkg/utils"
)

// newQuoteCmd creates the quote command: a one-shot upstream fetch that
// bypasses the store, useful for checking the API key and symbol coverage.
func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Fetch a live quote from the upstream provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Config.Validate(); err != nil {
				return err
			}
			symbol := strings.ToUpper(args[0])

			fetcher := quote.NewClient(quote.ClientConfig{
				APIKey:  app.Config.Upstream.APIKey,
				BaseURL: app.Config.Upstream.BaseURL,
				Timeout: app.Config.Upstream.RequestTimeout(),
			}, app.Logger)

			// One-shot interactive fetch, so transient upstream hiccups are
			// worth a couple of retries here. The scheduler never retries.
			q, err := utils.RetryWithResult(cmd.Context(), utils.DefaultRetryConfig(), func() (*models.Quote, error) {
				return fetcher.Fetch(cmd.Context(), symbol)
			})
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(q)
			}
			printQuote(output, q)
			output.Dim("Market %s", utils.GetMarketStatus())
			return nil
		},
	}
}

// newPriceCmd creates the price command: reads the latest stored observation
// without touching the upstream provider.
func newPriceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "price SYMBOL",
		Short: "Show the latest stored price for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}
			symbol := strings.ToUpper(args[0])

			obs, err := app.Store.LatestPrice(cmd.Context(), symbol)
			if err != nil {
				return err
			}
			output := NewOutput(cmd)
			if obs == nil {
				if output.IsJSON() {
					return output.JSON(nil)
				}
				output.Warning("No stored observations for %s", symbol)
				return nil
			}

			if output.IsJSON() {
				return output.JSON(models.NewPriceUpdate(obs))
			}
			printQuote(output, &obs.Quote)
			output.Dim("Fetched %s", FormatAge(obs.FetchedAt))
			return nil
		},
	}
}

func printQuote(output *Output, q *models.Quote) {
	output.Bold("%s  %s", q.Symbol, FormatUSD(q.Price))

	change := FormatChange(q.Change, q.ChangePercent)
	if q.Change.IsNegative() {
		output.Println(output.Red(change))
	} else {
		output.Println(output.Green(change))
	}

	output.Printf("  Open:       %s\n", FormatUSD(q.Open))
	output.Printf("  High:       %s\n", FormatUSD(q.High))
	output.Printf("  Low:        %s\n", FormatUSD(q.Low))
	output.Printf("  Prev close: %s\n", FormatUSD(q.PreviousClose))
	output.Printf("  Volume:     %s\n", FormatVolume(q.Volume))
}
