// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"galaxy-trader/internal/models"
)

// SQLiteStore persists trade history, pilot progression, and danger report
// history using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
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
	-- Trades table for the completed-trade journal
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		pilot_id TEXT NOT NULL,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		ware TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		profit REAL NOT NULL,
		xp_awarded REAL NOT NULL,
		completed INTEGER DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Pilots table for progression state across restarts
	CREATE TABLE IF NOT EXISTS pilots (
		pilot_id TEXT PRIMARY KEY,
		level INTEGER NOT NULL,
		xp REAL NOT NULL,
		gate_pending INTEGER DEFAULT 0,
		training INTEGER DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	-- Danger reports table for threat history and post-run analysis
	CREATE TABLE IF NOT EXISTS danger_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		zone_id TEXT NOT NULL,
		severity INTEGER NOT NULL,
		reported_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_trades_agent ON trades(agent_id);
	CREATE INDEX IF NOT EXISTS idx_trades_pilot ON trades(pilot_id);
	CREATE INDEX IF NOT EXISTS idx_trades_completed_at ON trades(completed_at);
	CREATE INDEX IF NOT EXISTS idx_danger_zone ON danger_reports(zone_id);
	CREATE INDEX IF NOT EXISTS idx_danger_reported_at ON danger_reports(reported_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Trade Journal Methods
// ============================================================================

// SaveTrade inserts or replaces a trade journal entry.
func (s *SQLiteStore) SaveTrade(ctx context.Context, t models.TradeReport) error {
	completed := 0
	if t.Completed {
		completed = 1
	}
	var completedAt interface{}
	if !t.CompletedAt.IsZero() {
		completedAt = t.CompletedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trades
		(id, agent_id, pilot_id, origin, destination, ware, quantity, profit, xp_awarded, completed, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TradeID, t.AgentID, t.PilotID, string(t.Origin), string(t.Destination), string(t.Ware),
		t.Quantity, t.Profit, t.XPAwarded, completed, t.StartedAt, completedAt)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// GetTrades returns the most recent trades, newest first.
func (s *SQLiteStore) GetTrades(ctx context.Context, limit int) ([]models.TradeReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, pilot_id, origin, destination, ware, quantity, profit, xp_awarded, completed, started_at, completed_at
		FROM trades
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetTradesByAgent returns the most recent trades for one agent, newest first.
func (s *SQLiteStore) GetTradesByAgent(ctx context.Context, agentID string, limit int) ([]models.TradeReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, pilot_id, origin, destination, ware, quantity, profit, xp_awarded, completed, started_at, completed_at
		FROM trades
		WHERE agent_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]models.TradeReport, error) {
	var trades []models.TradeReport
	for rows.Next() {
		var t models.TradeReport
		var origin, destination, ware string
		var completed int
		var completedAt sql.NullTime
		if err := rows.Scan(&t.TradeID, &t.AgentID, &t.PilotID, &origin, &destination, &ware,
			&t.Quantity, &t.Profit, &t.XPAwarded, &completed, &t.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Origin = models.SectorID(origin)
		t.Destination = models.SectorID(destination)
		t.Ware = models.WareID(ware)
		t.Completed = completed != 0
		if completedAt.Valid {
			t.CompletedAt = completedAt.Time
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}

// TradeStats summarizes the journal.
type TradeStats struct {
	TotalTrades int
	Completed   int
	TotalProfit float64
	TotalXP     float64
}

// GetTradeStats aggregates the trade journal.
func (s *SQLiteStore) GetTradeStats(ctx context.Context) (TradeStats, error) {
	var stats TradeStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(completed), 0), COALESCE(SUM(profit), 0), COALESCE(SUM(xp_awarded), 0)
		FROM trades
	`).Scan(&stats.TotalTrades, &stats.Completed, &stats.TotalProfit, &stats.TotalXP)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate trades: %w", err)
	}
	return stats, nil
}

// ============================================================================
// Pilot Methods
// ============================================================================

// SavePilot upserts a pilot's progression record.
func (s *SQLiteStore) SavePilot(ctx context.Context, p models.PilotRecord) error {
	gate := 0
	if p.GatePending {
		gate = 1
	}
	training := 0
	if p.TrainingInProgress {
		training = 1
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pilots (pilot_id, level, xp, gate_pending, training, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pilot_id) DO UPDATE SET
			level = excluded.level,
			xp = excluded.xp,
			gate_pending = excluded.gate_pending,
			training = excluded.training,
			updated_at = excluded.updated_at
	`, p.PilotID, p.Level, p.XP, gate, training, updated)
	if err != nil {
		return fmt.Errorf("failed to save pilot: %w", err)
	}
	return nil
}

// SavePilots upserts a batch of pilot records in one transaction.
func (s *SQLiteStore) SavePilots(ctx context.Context, pilots []models.PilotRecord) error {
	if len(pilots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pilots (pilot_id, level, xp, gate_pending, training, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pilot_id) DO UPDATE SET
			level = excluded.level,
			xp = excluded.xp,
			gate_pending = excluded.gate_pending,
			training = excluded.training,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range pilots {
		gate := 0
		if p.GatePending {
			gate = 1
		}
		training := 0
		if p.TrainingInProgress {
			training = 1
		}
		updated := p.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, p.PilotID, p.Level, p.XP, gate, training, updated); err != nil {
			return fmt.Errorf("failed to upsert pilot %s: %w", p.PilotID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPilot loads one pilot record.
func (s *SQLiteStore) GetPilot(ctx context.Context, pilotID string) (models.PilotRecord, error) {
	var p models.PilotRecord
	var gate, training int
	err := s.db.QueryRowContext(ctx, `
		SELECT pilot_id, level, xp, gate_pending, training, updated_at
		FROM pilots WHERE pilot_id = ?
	`, pilotID).Scan(&p.PilotID, &p.Level, &p.XP, &gate, &training, &p.UpdatedAt)
	if err != nil {
		return p, fmt.Errorf("failed to load pilot %s: %w", pilotID, err)
	}
	p.GatePending = gate != 0
	p.TrainingInProgress = training != 0
	return p, nil
}

// GetAllPilots loads every stored pilot record.
func (s *SQLiteStore) GetAllPilots(ctx context.Context) ([]models.PilotRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pilot_id, level, xp, gate_pending, training, updated_at
		FROM pilots ORDER BY pilot_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pilots: %w", err)
	}
	defer rows.Close()

	var pilots []models.PilotRecord
	for rows.Next() {
		var p models.PilotRecord
		var gate, training int
		if err := rows.Scan(&p.PilotID, &p.Level, &p.XP, &gate, &training, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pilot: %w", err)
		}
		p.GatePending = gate != 0
		p.TrainingInProgress = training != 0
		pilots = append(pilots, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pilots: %w", err)
	}
	return pilots, nil
}

// ============================================================================
// Danger Report Methods
// ============================================================================

// SaveDangerReport appends one threat report to the history.
func (s *SQLiteStore) SaveDangerReport(ctx context.Context, r models.DangerRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO danger_reports (zone_id, severity, reported_at)
		VALUES (?, ?, ?)
	`, string(r.ZoneID), r.Severity, r.ReportedAt)
	if err != nil {
		return fmt.Errorf("failed to save danger report: %w", err)
	}
	return nil
}

// GetDangerReports returns reports at or after the given time, oldest first.
func (s *SQLiteStore) GetDangerReports(ctx context.Context, since time.Time) ([]models.DangerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT zone_id, severity, reported_at
		FROM danger_reports
		WHERE reported_at >= ?
		ORDER BY reported_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query danger reports: %w", err)
	}
	defer rows.Close()

	var reports []models.DangerRecord
	for rows.Next() {
		var r models.DangerRecord
		var zone string
		if err := rows.Scan(&zone, &r.Severity, &r.ReportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan danger report: %w", err)
		}
		r.ZoneID = models.SectorID(zone)
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating danger reports: %w", err)
	}
	return reports, nil
}

// PruneDangerReports deletes reports older than the cutoff and returns the
// number removed.
func (s *SQLiteStore) PruneDangerReports(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM danger_reports WHERE reported_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune danger reports: %w", err)
	}
	return res.RowsAffected()
}
