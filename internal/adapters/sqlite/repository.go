package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"riskCore/internal/domain"
	"riskCore/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const dayLayout = "2006-01-02"

// Repository implements ports.LevelRepository, ports.TradeRepository and
// ports.SnapshotStore using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/risk_core.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS levels (
		id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		level_type TEXT NOT NULL,
		price_low REAL NOT NULL,
		price_high REAL NOT NULL,
		strength TEXT NOT NULL,
		detection_method TEXT NOT NULL,
		touches INTEGER NOT NULL DEFAULT 0,
		label TEXT NULL,
		first_touch TIMESTAMP NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (symbol, id)
	);

	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		leverage INTEGER NOT NULL,
		pnl REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		exit_trigger TEXT NULL,
		reason TEXT NULL
	);

	CREATE TABLE IF NOT EXISTS position_snapshots (
		symbol TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		saved_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_levels_symbol_timeframe ON levels (symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_exit_time ON trade_history (symbol, exit_time);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %v", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- LevelRepository Implementation ---

// SaveLevels upserts levels by (symbol, id) in one transaction.
func (r *Repository) SaveLevels(ctx context.Context, symbol string, levels []domain.Level) error {
	if len(levels) == 0 {
		return nil
	}
	const query = `
	INSERT INTO levels (id, symbol, timeframe, level_type, price_low, price_high, strength,
	                    detection_method, touches, label, first_touch, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, id) DO UPDATE SET
		price_low = excluded.price_low,
		price_high = excluded.price_high,
		strength = excluded.strength,
		touches = excluded.touches,
		label = excluded.label,
		first_touch = excluded.first_touch,
		updated_at = excluded.updated_at`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin level upsert for %s: %w: %v", symbol, ports.ErrQueryFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare level upsert: %w: %v", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, lvl := range levels {
		var firstTouch sql.NullTime
		if !lvl.FirstTouch.IsZero() {
			firstTouch = sql.NullTime{Time: lvl.FirstTouch.UTC(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			lvl.ID, symbol, lvl.Timeframe, lvl.Type, lvl.PriceLow, lvl.PriceHigh, lvl.Strength,
			lvl.Method, lvl.Touches, lvl.Label, firstTouch, now); err != nil {
			return fmt.Errorf("failed to upsert level %s for %s: %w: %v", lvl.ID, symbol, ports.ErrQueryFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit levels for %s: %w: %v", symbol, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Levels saved", map[string]interface{}{"symbol": symbol, "count": len(levels)})
	return nil
}

// FindLevels returns stored levels for a symbol and timeframe ordered by price.
func (r *Repository) FindLevels(ctx context.Context, symbol, timeframe string) ([]domain.Level, error) {
	const query = `
	SELECT id, timeframe, level_type, price_low, price_high, strength, detection_method,
	       touches, COALESCE(label, ''), first_touch
	FROM levels
	WHERE symbol = ? AND timeframe = ?
	ORDER BY price_low ASC`

	rows, err := r.db.QueryContext(ctx, query, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels for %s %s: %w: %v", symbol, timeframe, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	levels := make([]domain.Level, 0)
	for rows.Next() {
		lvl, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan level during FindLevels: %w", err)
		}
		levels = append(levels, lvl)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating level rows: %w", err)
	}
	return levels, nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a new trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trade_history (symbol, side, entry_price, exit_price, quantity, leverage, pnl,
	                           entry_time, exit_time, exit_trigger, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.Symbol, trade.Side, trade.EntryPrice, trade.ExitPrice, trade.Quantity, trade.Leverage, trade.PNL,
		trade.EntryTime.UTC(), trade.ExitTime.UTC(), trade.Trigger, trade.Reason)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade history for symbol %s: %w: %v", trade.Symbol, ports.ErrQueryFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade history %s: %w", trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade history created", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "pnl": trade.PNL})
	return id, nil
}

// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, symbol, side, entry_price, exit_price, quantity, leverage, pnl,
	       entry_time, exit_time, exit_trigger, reason
	FROM trade_history
	WHERE symbol = ? ORDER BY exit_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history for symbol %s: %w: %v", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade history during FindBySymbol: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade history rows: %w", err)
	}
	return trades, nil
}

// DailyStats sums realized P&L and counts trades closed on the given UTC day.
func (r *Repository) DailyStats(ctx context.Context, symbol string, day time.Time) (float64, int, error) {
	const query = `
	SELECT COALESCE(SUM(pnl), 0), COUNT(*)
	FROM trade_history
	WHERE symbol = ? AND date(exit_time) = ?`

	var pnl float64
	var count int
	err := r.db.QueryRowContext(ctx, query, symbol, day.UTC().Format(dayLayout)).Scan(&pnl, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute daily stats for symbol %s: %w: %v", symbol, ports.ErrQueryFailed, err)
	}
	return pnl, count, nil
}

// --- SnapshotStore Implementation ---

// SaveSnapshot replaces the stored snapshot for the position's symbol.
func (r *Repository) SaveSnapshot(ctx context.Context, snap *domain.PositionSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot: %w", ports.ErrInvalidRequest)
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %s: %w", snap.Position.Symbol, err)
	}

	const query = `
	INSERT INTO position_snapshots (symbol, payload, saved_at) VALUES (?, ?, ?)
	ON CONFLICT (symbol) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`
	if _, err := r.db.ExecContext(ctx, query, snap.Position.Symbol, string(payload), snap.SavedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w: %v", snap.Position.Symbol, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Position snapshot saved", map[string]interface{}{"symbol": snap.Position.Symbol})
	return nil
}

// LoadSnapshot returns the stored snapshot, or nil, nil when none exists.
func (r *Repository) LoadSnapshot(ctx context.Context, symbol string) (*domain.PositionSnapshot, error) {
	const query = `SELECT payload FROM position_snapshots WHERE symbol = ?`

	var payload string
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to load snapshot for %s: %w: %v", symbol, ports.ErrQueryFailed, err)
	}

	snap := &domain.PositionSnapshot{}
	if err := json.Unmarshal([]byte(payload), snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", symbol, err)
	}
	return snap, nil
}

// DeleteSnapshot removes the snapshot for symbol. Deleting a missing snapshot is not an error.
func (r *Repository) DeleteSnapshot(ctx context.Context, symbol string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM position_snapshots WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("failed to delete snapshot for %s: %w: %v", symbol, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Position snapshot deleted", map[string]interface{}{"symbol": symbol})
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLevel(s scanner) (domain.Level, error) {
	var lvl domain.Level
	var levelType, strength, method string
	var firstTouch sql.NullTime
	err := s.Scan(&lvl.ID, &lvl.Timeframe, &levelType, &lvl.PriceLow, &lvl.PriceHigh, &strength, &method,
		&lvl.Touches, &lvl.Label, &firstTouch)
	if err != nil {
		return lvl, err
	}
	lvl.Type = domain.LevelType(levelType)
	lvl.Strength = domain.Strength(strength)
	lvl.Method = domain.DetectionMethod(method)
	if firstTouch.Valid {
		lvl.FirstTouch = firstTouch.Time.UTC()
	}
	return lvl, nil
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	th := &domain.Trade{}
	var side string
	var trigger, reason sql.NullString
	err := s.Scan(
		&th.ID, &th.Symbol, &side, &th.EntryPrice, &th.ExitPrice, &th.Quantity, &th.Leverage, &th.PNL,
		&th.EntryTime, &th.ExitTime, &trigger, &reason)
	if err != nil {
		return nil, err
	}
	th.Side = domain.Side(side)
	th.Trigger = domain.TriggerUnknown // Default if NULL
	if trigger.Valid && trigger.String != "" {
		th.Trigger = domain.ExitTrigger(trigger.String)
	}
	if reason.Valid {
		th.Reason = reason.String
	}
	th.EntryTime = th.EntryTime.UTC()
	th.ExitTime = th.ExitTime.UTC()
	return th, nil
}
