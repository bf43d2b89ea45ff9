package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is an append-only log of cycle outcomes, kept apart from the
// relational history so operators can tail what the engine decided and why
// even when a cycle never produced a record (gateway down, no candles).
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Entry is one journaled cycle outcome.
type Entry struct {
	ID        int64     `json:"id"`
	TraceID   string    `json:"trace_id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// New opens the journal database at path, creating the schema if needed.
func New(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS cycle_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trace_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT,
		created_at INTEGER NOT NULL
	);`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_cycle_journal_symbol ON cycle_journal(symbol, created_at);`)
	return err
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// Append records one cycle outcome. Failures are returned, not fatal: the
// caller logs and moves on, a journaling problem must never sink a cycle.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return fmt.Errorf("journal closed")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO cycle_journal (trace_id, symbol, timeframe, outcome, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.TraceID, e.Symbol, e.Timeframe, e.Outcome, e.Reason, e.CreatedAt.Unix())
	return err
}

// Recent returns the newest entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, fmt.Errorf("journal closed")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, trace_id, symbol, timeframe, outcome, reason, created_at
		 FROM cycle_journal ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &e.TraceID, &e.Symbol, &e.Timeframe, &e.Outcome, &e.Reason, &ts); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(ts, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
