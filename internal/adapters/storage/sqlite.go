// Package storage records tick history in SQLite. The engine only ever
// writes here; restart recovery is explicitly not a goal, the tables
// exist for offline analysis of fleet exposure over time.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Mohanprasath-R/RMS/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- One row per completed tick
CREATE TABLE IF NOT EXISTS ticks (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    ticked_at     DATETIME NOT NULL,
    total_updates INTEGER  NOT NULL DEFAULT 0,
    errors        INTEGER  NOT NULL DEFAULT 0,
    accounts      INTEGER  NOT NULL DEFAULT 0
);

-- Per-symbol net exposure as observed at each tick
CREATE TABLE IF NOT EXISTS exposure (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    ticked_at DATETIME NOT NULL,
    symbol    TEXT     NOT NULL,
    volume    REAL     NOT NULL DEFAULT 0,
    accounts  INTEGER  NOT NULL DEFAULT 0,
    positions INTEGER  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_ticks_at       ON ticks(ticked_at DESC);
CREATE INDEX IF NOT EXISTS idx_exposure_at    ON exposure(ticked_at DESC);
CREATE INDEX IF NOT EXISTS idx_exposure_sym   ON exposure(symbol);
`

// retention bounds how much history survives startup pruning.
const retention = 30 * 24 * time.Hour

// SQLiteStorage implements ports.TickStorage on a local SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at path, applies the
// schema and prunes expired rows.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveTick appends one tick summary and its exposure rows.
func (s *SQLiteStorage) SaveTick(ctx context.Context, stats domain.EngineStats, exposure map[string]domain.SymbolExposure) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveTick: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ticks (ticked_at, total_updates, errors, accounts) VALUES (?, ?, ?, ?)`,
		now, stats.TotalUpdates, stats.Errors, stats.MonitoredCount,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTick: insert tick: %w", err)
	}

	for symbol, x := range exposure {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO exposure (ticked_at, symbol, volume, accounts, positions) VALUES (?, ?, ?, ?, ?)`,
			now, symbol, x.Volume, x.Accounts, x.Positions,
		)
		if err != nil {
			return fmt.Errorf("storage.SaveTick: insert exposure %q: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveTick: commit: %w", err)
	}
	return nil
}

// ExposureHistory returns the recorded exposure for a symbol inside the
// time range, newest first.
func (s *SQLiteStorage) ExposureHistory(ctx context.Context, symbol string, from, to time.Time) ([]domain.SymbolExposure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT volume, accounts, positions FROM exposure
		 WHERE symbol = ? AND ticked_at BETWEEN ? AND ?
		 ORDER BY ticked_at DESC`,
		symbol, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ExposureHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SymbolExposure
	for rows.Next() {
		var x domain.SymbolExposure
		if err := rows.Scan(&x.Volume, &x.Accounts, &x.Positions); err != nil {
			return nil, fmt.Errorf("storage.ExposureHistory: scan: %w", err)
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld drops rows past the retention window. Failures are ignored;
// pruning runs again on next startup.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retention)
	s.db.ExecContext(ctx, `DELETE FROM ticks WHERE ticked_at < ?`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM exposure WHERE ticked_at < ?`, cutoff)
}
