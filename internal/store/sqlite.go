package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	apperrors "stocktracker/internal/errors"
	"stocktracker/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store. WAL mode plus a busy
// timeout lets the retention sweep delete old observations while the
// ingestion path keeps appending.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Tracked instruments
	CREATE TABLE IF NOT EXISTS stocks (
		symbol TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Immutable price observations, one row per fetched quote.
	-- Decimal values are stored as TEXT to avoid float drift.
	CREATE TABLE IF NOT EXISTS price_observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL REFERENCES stocks(symbol),
		price TEXT NOT NULL,
		volume INTEGER NOT NULL DEFAULT 0,
		open TEXT,
		high TEXT,
		low TEXT,
		previous_close TEXT,
		change TEXT,
		change_percent TEXT,
		fetched_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_observations_symbol_time
		ON price_observations(symbol, fetched_at DESC);
	CREATE INDEX IF NOT EXISTS idx_observations_time
		ON price_observations(fetched_at);

	-- User alert rules
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		kind TEXT NOT NULL,
		target_value TEXT NOT NULL,
		current_value TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		message TEXT,
		created_at DATETIME NOT NULL,
		triggered_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_symbol_status
		ON alerts(symbol, status);

	-- One row per alert trigger
	CREATE TABLE IF NOT EXISTS alert_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id INTEGER NOT NULL REFERENCES alerts(id),
		triggered_value TEXT NOT NULL,
		triggered_at DATETIME NOT NULL,
		notification_sent INTEGER NOT NULL DEFAULT 0
	);

	-- Named watchlists
	CREATE TABLE IF NOT EXISTS watchlist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		list_name TEXT NOT NULL DEFAULT 'default',
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, list_name)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Stock Methods
// ============================================================================

// UpsertStock creates the stock row if it does not exist and refreshes its
// name and updated_at when it does.
func (s *SQLiteStore) UpsertStock(ctx context.Context, symbol, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stocks (symbol, name) VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, updated_at = CURRENT_TIMESTAMP
	`, symbol, name)
	if err != nil {
		return fmt.Errorf("failed to upsert stock: %w", err)
	}
	return nil
}

// GetStock retrieves a single stock by symbol.
func (s *SQLiteStore) GetStock(ctx context.Context, symbol string) (*models.Stock, error) {
	var st models.Stock
	var active int
	err := s.db.QueryRowContext(ctx, `
		SELECT symbol, name, is_active, created_at, updated_at FROM stocks WHERE symbol = ?
	`, symbol).Scan(&st.Symbol, &st.Name, &active, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrStockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	st.IsActive = active == 1
	return &st, nil
}

// ============================================================================
// Price Observation Methods
// ============================================================================

// AppendPrice persists a quote as a new immutable observation, creating the
// stock row on first sight of the symbol.
func (s *SQLiteStore) AppendPrice(ctx context.Context, quote models.Quote) (*models.PriceObservation, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO stocks (symbol, name) VALUES (?, ?)
	`, quote.Symbol, quote.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stock: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO price_observations
			(symbol, price, volume, open, high, low, previous_close, change, change_percent, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		quote.Symbol,
		quote.Price.String(),
		quote.Volume,
		quote.Open.String(),
		quote.High.String(),
		quote.Low.String(),
		quote.PreviousClose.String(),
		quote.Change.String(),
		quote.ChangePercent.String(),
		quote.FetchedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append observation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read observation id: %w", err)
	}

	return &models.PriceObservation{
		Quote:     quote,
		ID:        id,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// LatestPrice returns the most recent observation for a symbol, or nil when
// none exists.
func (s *SQLiteStore) LatestPrice(ctx context.Context, symbol string) (*models.PriceObservation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, price, volume, open, high, low, previous_close, change, change_percent, fetched_at, created_at
		FROM price_observations
		WHERE symbol = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`, symbol)

	obs, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest observation: %w", err)
	}
	return obs, nil
}

// PurgeOlderThan deletes all observations strictly older than the cutoff and
// returns how many were removed. It is used only by the retention sweep.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM price_observations WHERE fetched_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge observations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged observations: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanObservation(row rowScanner) (*models.PriceObservation, error) {
	var obs models.PriceObservation
	var price, open, high, low, prevClose, change, changePct sql.NullString
	err := row.Scan(
		&obs.ID, &obs.Symbol, &price, &obs.Volume,
		&open, &high, &low, &prevClose, &change, &changePct,
		&obs.FetchedAt, &obs.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	obs.Price = storedDecimal(price)
	obs.Open = storedDecimal(open)
	obs.High = storedDecimal(high)
	obs.Low = storedDecimal(low)
	obs.PreviousClose = storedDecimal(prevClose)
	obs.Change = storedDecimal(change)
	obs.ChangePercent = storedDecimal(changePct)
	return &obs, nil
}

func storedDecimal(v sql.NullString) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ============================================================================
// Alert Methods
// ============================================================================

// SaveAlert inserts a new alert and fills in its assigned ID. An empty status
// defaults to active.
func (s *SQLiteStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	var current interface{}
	if alert.CurrentValue != nil {
		current = alert.CurrentValue.String()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (symbol, kind, target_value, current_value, status, message, created_at, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, alert.Symbol, string(alert.Kind), alert.TargetValue.String(), current,
		string(alert.Status), alert.Message, alert.CreatedAt, alert.TriggeredAt)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read alert id: %w", err)
	}
	alert.ID = id
	return nil
}

// GetActiveAlerts retrieves the active alerts for a symbol in creation order.
func (s *SQLiteStore) GetActiveAlerts(ctx context.Context, symbol string) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, kind, target_value, current_value, status, message, created_at, triggered_at
		FROM alerts
		WHERE symbol = ? AND status = 'active'
		ORDER BY created_at ASC, id ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// ListAlerts retrieves alerts filtered by symbol and status, newest first.
// An empty symbol matches all symbols; an empty status matches all statuses.
func (s *SQLiteStore) ListAlerts(ctx context.Context, symbol string, status models.AlertStatus) ([]models.Alert, error) {
	query := `
		SELECT id, symbol, kind, target_value, current_value, status, message, created_at, triggered_at
		FROM alerts WHERE 1=1`
	var args []interface{}
	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// GetAlert retrieves a single alert by ID.
func (s *SQLiteStore) GetAlert(ctx context.Context, alertID int64) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, kind, target_value, current_value, status, message, created_at, triggered_at
		FROM alerts WHERE id = ?
	`, alertID)

	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var kind, status, target string
	var current, message sql.NullString
	var triggeredAt sql.NullTime
	err := row.Scan(&a.ID, &a.Symbol, &kind, &target, &current, &status, &message, &a.CreatedAt, &triggeredAt)
	if err != nil {
		return nil, err
	}
	a.Kind = models.AlertKind(kind)
	a.Status = models.AlertStatus(status)
	a.TargetValue = storedDecimal(sql.NullString{String: target, Valid: true})
	if current.Valid {
		d := storedDecimal(current)
		a.CurrentValue = &d
	}
	if message.Valid {
		a.Message = message.String
	}
	if triggeredAt.Valid {
		t := triggeredAt.Time
		a.TriggeredAt = &t
	}
	return &a, nil
}

// TriggerAlert transitions an alert from active to triggered, records the
// value that crossed the threshold and appends one history entry, all in a
// single transaction. Returns ErrAlertNotActive when the alert has already
// left the active state, so a trigger can never be applied twice.
func (s *SQLiteStore) TriggerAlert(ctx context.Context, alertID int64, value decimal.Decimal, at time.Time) (*models.AlertHistoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE alerts
		SET status = 'triggered', current_value = ?, triggered_at = ?
		WHERE id = ? AND status = 'active'
	`, value.String(), at, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to trigger alert: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to count updated alerts: %w", err)
	}
	if rows == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM alerts WHERE id = ?`, alertID).Scan(&exists); err == nil && exists == 0 {
			return nil, apperrors.ErrAlertNotFound
		}
		return nil, apperrors.ErrAlertNotActive
	}

	hres, err := tx.ExecContext(ctx, `
		INSERT INTO alert_history (alert_id, triggered_value, triggered_at, notification_sent)
		VALUES (?, ?, ?, 0)
	`, alertID, value.String(), at)
	if err != nil {
		return nil, fmt.Errorf("failed to record alert history: %w", err)
	}
	historyID, err := hres.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read history id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.AlertHistoryEntry{
		ID:             historyID,
		AlertID:        alertID,
		TriggeredValue: value,
		TriggeredAt:    at,
	}, nil
}

// CancelAlert transitions an alert from active to cancelled. Alerts in any
// other state cannot be cancelled.
func (s *SQLiteStore) CancelAlert(ctx context.Context, alertID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET status = 'cancelled' WHERE id = ? AND status = 'active'
	`, alertID)
	if err != nil {
		return fmt.Errorf("failed to cancel alert: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated alerts: %w", err)
	}
	if rows == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM alerts WHERE id = ?`, alertID).Scan(&exists); err == nil && exists == 0 {
			return apperrors.ErrAlertNotFound
		}
		return apperrors.ErrAlertNotActive
	}
	return nil
}

// GetAlertHistory retrieves the trigger history for an alert, newest first.
func (s *SQLiteStore) GetAlertHistory(ctx context.Context, alertID int64) ([]models.AlertHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_id, triggered_value, triggered_at, notification_sent
		FROM alert_history
		WHERE alert_id = ?
		ORDER BY triggered_at DESC, id DESC
	`, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	defer rows.Close()

	var entries []models.AlertHistoryEntry
	for rows.Next() {
		var e models.AlertHistoryEntry
		var value string
		var sent int
		if err := rows.Scan(&e.ID, &e.AlertID, &value, &e.TriggeredAt, &sent); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.TriggeredValue = storedDecimal(sql.NullString{String: value, Valid: true})
		e.NotificationSent = sent == 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkNotificationSent flags a history entry as having been announced.
func (s *SQLiteStore) MarkNotificationSent(ctx context.Context, historyID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alert_history SET notification_sent = 1 WHERE id = ?
	`, historyID)
	if err != nil {
		return fmt.Errorf("failed to mark notification: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated history entries: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrAlertNotFound
	}
	return nil
}

// ============================================================================
// Watchlist Methods
// ============================================================================

// AddToWatchlist adds a symbol to a named watchlist.
func (s *SQLiteStore) AddToWatchlist(ctx context.Context, symbol, listName string) error {
	if listName == "" {
		listName = "default"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO watchlist (symbol, list_name) VALUES (?, ?)
	`, symbol, listName)
	if err != nil {
		return fmt.Errorf("failed to add to watchlist: %w", err)
	}
	return nil
}

// RemoveFromWatchlist removes a symbol from a named watchlist.
func (s *SQLiteStore) RemoveFromWatchlist(ctx context.Context, symbol, listName string) error {
	if listName == "" {
		listName = "default"
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM watchlist WHERE symbol = ? AND list_name = ?
	`, symbol, listName)
	if err != nil {
		return fmt.Errorf("failed to remove from watchlist: %w", err)
	}
	return nil
}

// GetWatchlist returns the symbols in a named watchlist in insertion order.
func (s *SQLiteStore) GetWatchlist(ctx context.Context, listName string) ([]string, error) {
	if listName == "" {
		listName = "default"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol FROM watchlist WHERE list_name = ? ORDER BY added_at ASC, id ASC
	`, listName)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
