package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
)

// Journal is the durable SQLite record of every settlement decision the
// engine submits, together with the ledger confirmation token. It also holds
// a metadata KV table used to persist the position id sequence across
// restarts.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (or creates) the journal database with WAL mode enabled.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settlements (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			position_id INTEGER NOT NULL,
			trader TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			token TEXT NOT NULL DEFAULT '',
			ts INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create settlements table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record stores a settlement decision and returns its journal sequence.
func (j *Journal) Record(ctx context.Context, dec domain.SettlementDecision, ts int64) (int64, error) {
	payload, err := json.Marshal(dec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal decision: %w", err)
	}

	res, err := j.db.ExecContext(ctx,
		"INSERT INTO settlements (position_id, trader, kind, payload, ts) VALUES (?, ?, ?, ?, ?)",
		dec.Position.ID, dec.Position.Trader, string(dec.Kind), payload, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert settlement: %w", err)
	}
	return res.LastInsertId()
}

// Confirm attaches the ledger confirmation token to a recorded decision.
func (j *Journal) Confirm(ctx context.Context, seq int64, token string) error {
	_, err := j.db.ExecContext(ctx,
		"UPDATE settlements SET token = ? WHERE seq = ?", token, seq)
	return err
}

// Revoke removes a recorded decision whose ledger submission terminally
// failed and was rolled back by the engine.
func (j *Journal) Revoke(ctx context.Context, seq int64) error {
	_, err := j.db.ExecContext(ctx, "DELETE FROM settlements WHERE seq = ?", seq)
	return err
}

// LoadByTrader returns the trader's recorded decisions in journal order.
func (j *Journal) LoadByTrader(ctx context.Context, trader string) ([]domain.SettlementDecision, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT payload FROM settlements WHERE trader = ? ORDER BY seq ASC", trader)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var out []domain.SettlementDecision
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		var dec domain.SettlementDecision
		if err := json.Unmarshal(payload, &dec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settlement: %w", err)
		}
		out = append(out, dec)
	}
	return out, rows.Err()
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (j *Journal) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table. Missing keys return
// an empty string, not an error.
func (j *Journal) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := j.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}
