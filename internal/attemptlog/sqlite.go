package attemptlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLog persists attempt records in a SQLite database. Used by the
// server so the statistics boundary can filter without re-reading a whole
// file.
type SQLiteLog struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the attempt log database at path.
func OpenSQLite(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open attempt log db: %w", err)
	}
	// WAL keeps concurrent batch appends from blocking stats reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS attempt (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		recipient TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create attempt schema: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

func (l *SQLiteLog) Append(ctx context.Context, rec Record) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO attempt (ts, batch_id, ordinal, recipient, company, subject, outcome, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(timeLayout), rec.BatchID, rec.Ordinal,
		rec.Recipient, rec.Company, rec.Subject, rec.Outcome, rec.Message)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (l *SQLiteLog) Query(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT ts, batch_id, ordinal, recipient, company, subject, outcome, message
	          FROM attempt WHERE 1=1`
	var args []any

	// Timestamps are stored as UTC RFC3339 strings, so lexicographic
	// comparison matches chronological order.
	if !f.Since.IsZero() {
		query += " AND ts >= ?"
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if !f.Until.IsZero() {
		query += " AND ts <= ?"
		args = append(args, f.Until.UTC().Format(timeLayout))
	}
	if f.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, f.Outcome)
	}
	query += " ORDER BY id ASC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var ts string
		if err := rows.Scan(&ts, &rec.BatchID, &rec.Ordinal, &rec.Recipient,
			&rec.Company, &rec.Subject, &rec.Outcome, &rec.Message); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		parsed, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse attempt timestamp %q: %w", ts, err)
		}
		rec.Timestamp = parsed
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lastN(recs, f.Limit), nil
}
