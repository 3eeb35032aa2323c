package scanstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps scans in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `CREATE TABLE IF NOT EXISTS scans (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	top_disease  TEXT,
	disease_name TEXT,
	confidence   REAL NOT NULL,
	outcome      TEXT NOT NULL,
	species_key  TEXT,
	payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_user_created ON scans(user_id, created_at);`

// NewSQLiteStore opens (creating if needed) the database at dsn. A plain file
// path gets WAL journaling and a busy timeout.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite scan store requires a dsn")
	}
	if !strings.Contains(dsn, "?") && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, scan *Scan) error {
	prepare(scan, s.now)

	payload, err := json.Marshal(scan)
	if err != nil {
		return fmt.Errorf("marshaling scan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO scans
		(id, user_id, created_at, top_disease, disease_name, confidence, outcome, species_key, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.UserID, scan.CreatedAt.UnixNano(), scan.TopDisease, scan.DiseaseName,
		scan.Confidence, string(scan.Filter.Outcome), string(scan.Filter.SpeciesKey), string(payload))
	if err != nil {
		return fmt.Errorf("inserting scan: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Scan, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM scans WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying scan: %w", err)
	}
	return decodeScan(payload)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Scan, error) {
	query := `SELECT payload FROM scans ORDER BY created_at DESC, id ASC`
	var args []any
	if userID != "" {
		query = `SELECT payload FROM scans WHERE user_id = ? ORDER BY created_at DESC, id ASC`
		args = append(args, userID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer rows.Close()

	scans := []Scan{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		scan, err := decodeScan(payload)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *scan)
	}
	return scans, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting scan: %w", err)
	}
	if n == 0 {
		return ErrScanNotFound
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeScan(payload string) (*Scan, error) {
	var scan Scan
	if err := json.Unmarshal([]byte(payload), &scan); err != nil {
		return nil, fmt.Errorf("decoding scan payload: %w", err)
	}
	return &scan, nil
}

var _ Store = (*SQLiteStore)(nil)
