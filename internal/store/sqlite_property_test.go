package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"stocktracker/internal/models"
)

// Property: For any quote, appending it and reading the latest observation
// back produces exactly the same decimal values. Prices are persisted as
// text, so there is no float drift anywhere in the round trip.
func TestProperty_ObservationRoundTripConsistency(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "property.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	var seq int

	properties.Property("Append then LatestPrice preserves all values", prop.ForAll(
		func(priceCents int64, volume int64, pctBasisPoints int64) bool {
			ctx := context.Background()

			// Unique symbol per run so LatestPrice always sees this insert.
			seq++
			symbol := fmt.Sprintf("SYM%d", seq)

			price := decimal.New(priceCents, -2)
			pct := decimal.New(pctBasisPoints, -4)
			quote := models.Quote{
				Symbol:        symbol,
				Price:         price,
				Volume:        volume,
				Open:          price.Add(decimal.New(-50, -2)),
				High:          price.Add(decimal.New(120, -2)),
				Low:           price.Add(decimal.New(-120, -2)),
				PreviousClose: price.Add(decimal.New(-500, -2)),
				Change:        decimal.New(500, -2),
				ChangePercent: pct,
				FetchedAt:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			}

			if _, err := store.AppendPrice(ctx, quote); err != nil {
				t.Logf("AppendPrice failed: %v", err)
				return false
			}

			got, err := store.LatestPrice(ctx, symbol)
			if err != nil {
				t.Logf("LatestPrice failed: %v", err)
				return false
			}
			if got == nil {
				t.Logf("LatestPrice returned nil for %s", symbol)
				return false
			}

			if !got.Price.Equal(quote.Price) ||
				!got.Open.Equal(quote.Open) ||
				!got.High.Equal(quote.High) ||
				!got.Low.Equal(quote.Low) ||
				!got.PreviousClose.Equal(quote.PreviousClose) ||
				!got.Change.Equal(quote.Change) ||
				!got.ChangePercent.Equal(quote.ChangePercent) {
				t.Logf("Decimal mismatch: stored=%+v retrieved=%+v", quote, got.Quote)
				return false
			}
			if got.Volume != quote.Volume {
				t.Logf("Volume mismatch: stored=%d retrieved=%d", quote.Volume, got.Volume)
				return false
			}
			return true
		},
		gen.Int64Range(1, 10000000),
		gen.Int64Range(0, 1000000000),
		gen.Int64Range(-1000000, 1000000),
	))

	properties.TestingRun(t)
}

// Property: After a purge with any cutoff, no surviving observation is older
// than the cutoff, and observations at or after the cutoff all survive.
func TestProperty_PurgeNeverRemovesFreshObservations(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Purge removes exactly the stale rows", prop.ForAll(
		func(agesHours []int64, cutoffHours int64) bool {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), fmt.Sprintf("purge%d.db", time.Now().UnixNano())))
			if err != nil {
				t.Logf("Failed to create store: %v", err)
				return false
			}
			defer store.Close()

			ctx := context.Background()
			now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

			stale := int64(0)
			for _, age := range agesHours {
				at := now.Add(-time.Duration(age) * time.Hour)
				quote := models.Quote{
					Symbol:    "AAPL",
					Price:     decimal.New(15000, -2),
					FetchedAt: at,
				}
				if _, err := store.AppendPrice(ctx, quote); err != nil {
					t.Logf("AppendPrice failed: %v", err)
					return false
				}
				if age > cutoffHours {
					stale++
				}
			}

			cutoff := now.Add(-time.Duration(cutoffHours) * time.Hour)
			removed, err := store.PurgeOlderThan(ctx, cutoff)
			if err != nil {
				t.Logf("PurgeOlderThan failed: %v", err)
				return false
			}
			if removed != stale {
				t.Logf("Removed %d, want %d (ages=%v cutoff=%dh)", removed, stale, agesHours, cutoffHours)
				return false
			}
			return true
		},
		gen.SliceOfN(8, gen.Int64Range(0, 400)),
		gen.Int64Range(1, 300),
	))

	properties.TestingRun(t)
}
