package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"RSIScreener/internal/model"
)

// SQLiteRecorder persists the alert delivery ledger to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite ledger opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alert_deliveries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			ticker     TEXT NOT NULL,
			signal     TEXT NOT NULL,
			channel    TEXT NOT NULL,
			status     TEXT NOT NULL,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_key ON alert_deliveries(ticker, signal, status, timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordDelivery(ctx context.Context, d *Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := d.SentAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO alert_deliveries
		(timestamp, ticker, signal, channel, status, error)
		VALUES (?,?,?,?,?,?)`,
		at.UnixNano(), d.Ticker, string(d.Signal), d.Channel, d.Status, d.Error,
	)
	return err
}

func (r *SQLiteRecorder) LastSent(ctx context.Context, ticker string, signal model.Signal) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ts int64
	err := r.db.QueryRowContext(ctx, `SELECT timestamp FROM alert_deliveries
		WHERE ticker = ? AND signal = ? AND status = ?
		ORDER BY timestamp DESC LIMIT 1`,
		ticker, string(signal), StatusSent,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, ts), true, nil
}

// Count returns the number of ledger rows, for diagnostics.
func (r *SQLiteRecorder) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_deliveries`).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite ledger")
	return r.db.Close()
}
