// Package ingest orchestrates the market-data polling pipeline.
package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"stocktracker/internal/alerts"
	"stocktracker/internal/models"
	"stocktracker/internal/quote"
	"stocktracker/internal/ratelimit"
	"stocktracker/internal/store"
)

// Publisher is the event sink for pipeline output.
type Publisher interface {
	Publish(ev models.Event)
}

// MultiPublisher fans each published event out to several sinks in order.
func MultiPublisher(pubs ...Publisher) Publisher {
	return multiPublisher(pubs)
}

type multiPublisher []Publisher

func (m multiPublisher) Publish(ev models.Event) {
	for _, p := range m {
		p.Publish(ev)
	}
}

// Config holds settings for the ingestion scheduler.
type Config struct {
	// Symbols is the fixed, ordered tracked-symbol list.
	Symbols []string
	// TickInterval is the cadence of full ingestion passes.
	TickInterval time.Duration
	// SweepInterval is the cadence of retention sweeps.
	SweepInterval time.Duration
	// Retention is the age beyond which observations are purged.
	Retention time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Symbols:       []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"},
		TickInterval:  time.Minute,
		SweepInterval: 24 * time.Hour,
		Retention:     7 * 24 * time.Hour,
	}
}

// Scheduler drives the ingestion pipeline. Each tick walks the tracked
// symbols in configured order, fetching every quote through the shared rate
// limiter, persisting the observation, evaluating alerts and publishing the
// resulting events. A fetch failure skips that symbol until the next tick;
// it never stalls the rest of the pass.
//
// The retention sweep runs on its own cadence in its own goroutine and
// shares no state with the tick beyond the store itself.
type Scheduler struct {
	cfg       Config
	limiter   *ratelimit.Limiter
	fetcher   quote.Fetcher
	store     store.DataStore
	evaluator *alerts.Evaluator
	pub       Publisher
	logger    zerolog.Logger

	tickRunning atomic.Bool
}

// New creates a new ingestion scheduler.
func New(cfg Config, limiter *ratelimit.Limiter, fetcher quote.Fetcher, dataStore store.DataStore, evaluator *alerts.Evaluator, pub Publisher, logger zerolog.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	return &Scheduler{
		cfg:       cfg,
		limiter:   limiter,
		fetcher:   fetcher,
		store:     dataStore,
		evaluator: evaluator,
		pub:       pub,
		logger:    logger.With().Str("component", "ingest").Logger(),
	}
}

// Run blocks, driving ingestion ticks and retention sweeps until ctx is
// cancelled. The first tick starts immediately so subscribers have data
// without waiting a full interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Strs("symbols", s.cfg.Symbols).
		Dur("tick_interval", s.cfg.TickInterval).
		Dur("retention", s.cfg.Retention).
		Msg("Starting ingestion scheduler")

	go s.sweepLoop(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.RunTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Ingestion scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunTick(ctx)
		}
	}
}

// RunTick executes one full ingestion pass over the tracked symbols in
// order. If a pass is still running when the next trigger fires, the new
// pass is skipped: a tick never overlaps itself, so the rate limiter is
// never consumed twice concurrently.
func (s *Scheduler) RunTick(ctx context.Context) {
	if !s.tickRunning.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("Previous tick still running, skipping this trigger")
		return
	}
	defer s.tickRunning.Store(false)

	start := time.Now()
	for _, symbol := range s.cfg.Symbols {
		if err := s.limiter.Acquire(ctx); err != nil {
			return
		}
		s.ingestSymbol(ctx, symbol)
	}
	s.logger.Info().
		Int("symbols", len(s.cfg.Symbols)).
		Dur("elapsed", time.Since(start)).
		Msg("Tick completed")
}

// ingestSymbol runs the fetch-store-evaluate-broadcast chain for one symbol.
func (s *Scheduler) ingestSymbol(ctx context.Context, symbol string) {
	q, err := s.fetcher.Fetch(ctx, symbol)
	if err != nil {
		s.logger.Error().Err(err).
			Str("symbol", symbol).
			Msg("Fetch failed, symbol will retry next tick")
		return
	}

	obs, err := s.store.AppendPrice(ctx, *q)
	if err != nil {
		s.logger.Error().Err(err).
			Str("symbol", symbol).
			Msg("Failed to persist observation")
		return
	}

	s.pub.Publish(models.Event{
		Type: models.EventPriceUpdate,
		Data: models.NewPriceUpdate(obs),
	})

	transitions, err := s.evaluator.Evaluate(ctx, obs)
	if err != nil {
		s.logger.Error().Err(err).
			Str("symbol", symbol).
			Msg("Alert evaluation failed for observation")
		return
	}
	for _, tr := range transitions {
		s.pub.Publish(tr.Event())
	}
}

// sweepLoop periodically deletes observations older than the retention
// window. It deliberately runs independently of the tick loop.
func (s *Scheduler) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunSweep(ctx)
		}
	}
}

// RunSweep executes one retention sweep.
func (s *Scheduler) RunSweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.Retention)
	removed, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Retention sweep failed")
		return
	}
	s.logger.Info().
		Int64("removed", removed).
		Time("cutoff", cutoff).
		Msg("Retention sweep completed")
}
