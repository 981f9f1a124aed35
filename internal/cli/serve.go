package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stocktracker/internal/alerts"
	"stocktracker/internal/ingest"
	"stocktracker/internal/notify"
	"stocktracker/internal/quote"
	"stocktracker/internal/ratelimit"
	"stocktracker/internal/server"
	"stocktracker/internal/stream"
)

// newServeCmd creates the serve command: the long-running process that polls
// quotes, persists observations, evaluates alerts and serves WebSocket
// subscribers until interrupted.
func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion pipeline and WebSocket server",
		Long: `Runs the full pipeline: quote polling on a fixed tick, alert
evaluation, retention sweeps and the live WebSocket broadcast server.

Stops cleanly on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Config.Validate(); err != nil {
				return err
			}
			if app.Store == nil {
				return fmt.Errorf("data store is unavailable")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			symbols := trackedSymbols(ctx, app)

			hub := stream.NewHub(app.Logger)
			limiter := ratelimit.New(app.Config.Upstream.MinInterval())
			fetcher := quote.NewClient(quote.ClientConfig{
				APIKey:  app.Config.Upstream.APIKey,
				BaseURL: app.Config.Upstream.BaseURL,
				Timeout: app.Config.Upstream.RequestTimeout(),
			}, app.Logger)
			evaluator := alerts.NewEvaluator(app.Store, app.Logger)

			notifier := notify.NewMultiNotifier(app.Logger,
				notify.NewLogChannel(app.Logger),
				notify.NewTerminalChannel())
			dispatcher := notify.NewDispatcher(app.Store, notifier, app.Logger)

			scheduler := ingest.New(ingest.Config{
				Symbols:       symbols,
				TickInterval:  app.Config.Ingest.TickInterval(),
				SweepInterval: app.Config.Ingest.SweepInterval(),
				Retention:     app.Config.Ingest.Retention(),
			}, limiter, fetcher, app.Store, evaluator,
				ingest.MultiPublisher(hub, dispatcher), app.Logger)

			srv := server.New(server.Config{
				Addr:    app.Config.Server.Addr,
				Symbols: symbols,
			}, hub, app.Store, app.Logger)

			errCh := make(chan error, 2)
			go func() { errCh <- scheduler.Run(ctx) }()
			go func() { errCh <- srv.Run(ctx) }()

			// First failure (or signal) takes the whole process down.
			err := <-errCh
			stop()
			<-errCh

			if errors.Is(err, context.Canceled) {
				app.Logger.Info().Msg("Shutdown complete")
				return nil
			}
			return err
		},
	}
}

// trackedSymbols returns the symbols the pipeline polls. A non-empty
// default watchlist takes precedence over the configured list, so symbols
// added at runtime survive a restart.
func trackedSymbols(ctx context.Context, app *App) []string {
	symbols, err := app.Store.GetWatchlist(ctx, "default")
	if err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to read default watchlist, using configured symbols")
		return app.Config.Ingest.Symbols
	}
	if len(symbols) == 0 {
		return app.Config.Ingest.Symbols
	}
	app.Logger.Info().Strs("symbols", symbols).Msg("Tracking symbols from default watchlist")
	return symbols
}
