package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "stocktracker/internal/errors"
	"stocktracker/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testQuote(symbol string, price string, fetchedAt time.Time) models.Quote {
	return models.Quote{
		Symbol:        symbol,
		Price:         decimal.RequireFromString(price),
		Volume:        1000,
		Open:          decimal.RequireFromString("148.50"),
		High:          decimal.RequireFromString("151.20"),
		Low:           decimal.RequireFromString("147.80"),
		PreviousClose: decimal.RequireFromString("145.00"),
		Change:        decimal.RequireFromString("5.00"),
		ChangePercent: decimal.RequireFromString("3.4483"),
		FetchedAt:     fetchedAt,
	}
}

func TestAppendPrice_AndLatestPrice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	first, err := store.AppendPrice(ctx, testQuote("AAPL", "150.00", base))
	if err != nil {
		t.Fatalf("AppendPrice failed: %v", err)
	}
	if first.ID == 0 {
		t.Error("Expected assigned observation ID")
	}

	second, err := store.AppendPrice(ctx, testQuote("AAPL", "151.30", base.Add(time.Minute)))
	if err != nil {
		t.Fatalf("AppendPrice failed: %v", err)
	}

	latest, err := store.LatestPrice(ctx, "AAPL")
	if err != nil {
		t.Fatalf("LatestPrice failed: %v", err)
	}
	if latest == nil {
		t.Fatal("Expected an observation, got nil")
	}
	if latest.ID != second.ID {
		t.Errorf("Latest observation ID = %d, want %d", latest.ID, second.ID)
	}
	if latest.Price.String() != "151.3" {
		t.Errorf("Latest price = %s, want 151.3", latest.Price)
	}
	if !latest.ChangePercent.Equal(decimal.RequireFromString("3.4483")) {
		t.Errorf("Change percent = %s, want 3.4483", latest.ChangePercent)
	}
}

func TestLatestPrice_NoObservationsReturnsNil(t *testing.T) {
	store := newTestStore(t)

	latest, err := store.LatestPrice(context.Background(), "GOOGL")
	if err != nil {
		t.Fatalf("LatestPrice failed: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nil for unseen symbol, got %+v", latest)
	}
}

func TestLatestPrice_TiedTimestampsPreferNewestInsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if _, err := store.AppendPrice(ctx, testQuote("AAPL", "150.00", at)); err != nil {
		t.Fatalf("AppendPrice failed: %v", err)
	}
	second, err := store.AppendPrice(ctx, testQuote("AAPL", "150.50", at))
	if err != nil {
		t.Fatalf("AppendPrice failed: %v", err)
	}

	latest, err := store.LatestPrice(ctx, "AAPL")
	if err != nil {
		t.Fatalf("LatestPrice failed: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("Tie should resolve to newest insert, got ID %d want %d", latest.ID, second.ID)
	}
}

func TestPurgeOlderThan_RemovesOnlyStaleObservations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	ages := []int{1, 6, 7, 8, 10} // days
	for _, age := range ages {
		at := now.Add(-time.Duration(age) * 24 * time.Hour)
		if _, err := store.AppendPrice(ctx, testQuote("AAPL", "150.00", at)); err != nil {
			t.Fatalf("AppendPrice failed: %v", err)
		}
	}

	cutoff := now.Add(-7 * 24 * time.Hour)
	removed, err := store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	// Strictly older than the cutoff: the 8d and 10d rows. The row at exactly
	// 7d sits on the boundary and survives.
	if removed != 2 {
		t.Errorf("Removed %d observations, want 2", removed)
	}

	latest, err := store.LatestPrice(ctx, "AAPL")
	if err != nil {
		t.Fatalf("LatestPrice failed: %v", err)
	}
	if latest == nil {
		t.Fatal("Recent observations must survive the purge")
	}
}

func TestPurgeOlderThan_EmptyStoreRemovesNothing(t *testing.T) {
	store := newTestStore(t)

	removed, err := store.PurgeOlderThan(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Removed %d from empty store, want 0", removed)
	}
}

func TestSaveAlert_AssignsIDAndDefaults(t *testing.T) {
	store := newTestStore(t)

	alert := &models.Alert{
		Symbol:      "AAPL",
		Kind:        models.AlertPriceAbove,
		TargetValue: decimal.RequireFromString("200.00"),
	}
	if err := store.SaveAlert(context.Background(), alert); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}
	if alert.ID == 0 {
		t.Error("Expected assigned alert ID")
	}
	if alert.Status != models.AlertStatusActive {
		t.Errorf("Default status = %s, want active", alert.Status)
	}

	loaded, err := store.GetAlert(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if !loaded.TargetValue.Equal(alert.TargetValue) {
		t.Errorf("Target value = %s, want %s", loaded.TargetValue, alert.TargetValue)
	}
}

func TestGetActiveAlerts_FiltersBySymbolAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mkAlert := func(symbol string, status models.AlertStatus) *models.Alert {
		a := &models.Alert{
			Symbol:      symbol,
			Kind:        models.AlertPriceAbove,
			TargetValue: decimal.RequireFromString("100"),
			Status:      status,
		}
		if err := store.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
		return a
	}

	active := mkAlert("AAPL", models.AlertStatusActive)
	mkAlert("AAPL", models.AlertStatusCancelled)
	mkAlert("GOOGL", models.AlertStatusActive)

	alerts, err := store.GetActiveAlerts(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetActiveAlerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Got %d active alerts for AAPL, want 1", len(alerts))
	}
	if alerts[0].ID != active.ID {
		t.Errorf("Active alert ID = %d, want %d", alerts[0].ID, active.ID)
	}
}

func TestTriggerAlert_TransitionsOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alert := &models.Alert{
		Symbol:      "AAPL",
		Kind:        models.AlertPriceAbove,
		TargetValue: decimal.RequireFromString("150.00"),
	}
	if err := store.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	value := decimal.RequireFromString("151.30")

	entry, err := store.TriggerAlert(ctx, alert.ID, value, at)
	if err != nil {
		t.Fatalf("TriggerAlert failed: %v", err)
	}
	if entry.AlertID != alert.ID {
		t.Errorf("History alert ID = %d, want %d", entry.AlertID, alert.ID)
	}
	if !entry.TriggeredValue.Equal(value) {
		t.Errorf("Triggered value = %s, want %s", entry.TriggeredValue, value)
	}

	loaded, err := store.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if loaded.Status != models.AlertStatusTriggered {
		t.Errorf("Status = %s, want triggered", loaded.Status)
	}
	if loaded.TriggeredAt == nil {
		t.Error("Expected triggered_at to be set")
	}
	if loaded.CurrentValue == nil || !loaded.CurrentValue.Equal(value) {
		t.Errorf("Current value = %v, want %s", loaded.CurrentValue, value)
	}

	// Second trigger must refuse: the alert already left the active state.
	_, err = store.TriggerAlert(ctx, alert.ID, value, at.Add(time.Minute))
	if !errors.Is(err, apperrors.ErrAlertNotActive) {
		t.Errorf("Second trigger error = %v, want ErrAlertNotActive", err)
	}

	history, err := store.GetAlertHistory(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlertHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("History has %d entries, want exactly 1", len(history))
	}
}

func TestTriggerAlert_UnknownAlert(t *testing.T) {
	store := newTestStore(t)

	_, err := store.TriggerAlert(context.Background(), 9999, decimal.RequireFromString("1"), time.Now())
	if !errors.Is(err, apperrors.ErrAlertNotFound) {
		t.Errorf("Error = %v, want ErrAlertNotFound", err)
	}
}

func TestCancelAlert_OnlyActiveAlertsCancel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alert := &models.Alert{
		Symbol:      "AAPL",
		Kind:        models.AlertPriceBelow,
		TargetValue: decimal.RequireFromString("100.00"),
	}
	if err := store.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	if err := store.CancelAlert(ctx, alert.ID); err != nil {
		t.Fatalf("CancelAlert failed: %v", err)
	}
	loaded, _ := store.GetAlert(ctx, alert.ID)
	if loaded.Status != models.AlertStatusCancelled {
		t.Errorf("Status = %s, want cancelled", loaded.Status)
	}

	if err := store.CancelAlert(ctx, alert.ID); !errors.Is(err, apperrors.ErrAlertNotActive) {
		t.Errorf("Second cancel error = %v, want ErrAlertNotActive", err)
	}
	if err := store.CancelAlert(ctx, 9999); !errors.Is(err, apperrors.ErrAlertNotFound) {
		t.Errorf("Unknown cancel error = %v, want ErrAlertNotFound", err)
	}
}

func TestListAlerts_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, spec := range []struct {
		symbol string
		status models.AlertStatus
	}{
		{"AAPL", models.AlertStatusActive},
		{"AAPL", models.AlertStatusTriggered},
		{"GOOGL", models.AlertStatusActive},
	} {
		a := &models.Alert{
			Symbol:      spec.symbol,
			Kind:        models.AlertPriceAbove,
			TargetValue: decimal.RequireFromString("100"),
			Status:      spec.status,
		}
		if err := store.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}

	all, err := store.ListAlerts(ctx, "", "")
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Unfiltered list has %d alerts, want 3", len(all))
	}

	aapl, err := store.ListAlerts(ctx, "AAPL", "")
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(aapl) != 2 {
		t.Errorf("AAPL list has %d alerts, want 2", len(aapl))
	}

	activeAapl, err := store.ListAlerts(ctx, "AAPL", models.AlertStatusActive)
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(activeAapl) != 1 {
		t.Errorf("Active AAPL list has %d alerts, want 1", len(activeAapl))
	}
}

func TestUpsertStock_And_GetStock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertStock(ctx, "AAPL", "Apple Inc."); err != nil {
		t.Fatalf("UpsertStock failed: %v", err)
	}
	if err := store.UpsertStock(ctx, "AAPL", "Apple"); err != nil {
		t.Fatalf("UpsertStock (update) failed: %v", err)
	}

	stock, err := store.GetStock(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	if stock.Name != "Apple" {
		t.Errorf("Name = %s, want Apple", stock.Name)
	}
	if !stock.IsActive {
		t.Error("Expected stock to be active")
	}

	if _, err := store.GetStock(ctx, "ZZZZ"); !errors.Is(err, apperrors.ErrStockNotFound) {
		t.Errorf("Error = %v, want ErrStockNotFound", err)
	}
}

func TestWatchlist_AddShowRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, s := range []string{"AAPL", "GOOGL", "AAPL"} { // duplicate add is a no-op
		if err := store.AddToWatchlist(ctx, s, ""); err != nil {
			t.Fatalf("AddToWatchlist failed: %v", err)
		}
	}

	symbols, err := store.GetWatchlist(ctx, "")
	if err != nil {
		t.Fatalf("GetWatchlist failed: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("Watchlist has %d symbols, want 2", len(symbols))
	}
	if symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("Watchlist order = %v, want [AAPL GOOGL]", symbols)
	}

	if err := store.RemoveFromWatchlist(ctx, "AAPL", ""); err != nil {
		t.Fatalf("RemoveFromWatchlist failed: %v", err)
	}
	symbols, _ = store.GetWatchlist(ctx, "")
	if len(symbols) != 1 || symbols[0] != "GOOGL" {
		t.Errorf("Watchlist after removal = %v, want [GOOGL]", symbols)
	}

	// Separate lists do not interfere.
	if err := store.AddToWatchlist(ctx, "TSLA", "tech"); err != nil {
		t.Fatalf("AddToWatchlist failed: %v", err)
	}
	def, _ := store.GetWatchlist(ctx, "default")
	if len(def) != 1 {
		t.Errorf("Default list affected by named list: %v", def)
	}
}
