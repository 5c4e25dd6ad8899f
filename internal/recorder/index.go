package recorder

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SessionRecord is one row of the session index (spec §6's persistent
// session-index table plus the per-session session.json it mirrors).
type SessionRecord struct {
	ID         string
	Name       string
	StartedAt  time.Time
	EndedAt    *time.Time
	DataFormat string
	RootPath   string
	Status     string // "recording" | "completed" | "aborted"
}

// sessionIndex persists the session table SQLite-backed, grounded on the
// device catalogue's store shape.
type sessionIndex struct {
	db *sql.DB
}

func openSessionIndex(dbPath string) (*sessionIndex, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open session index: %w", err)
	}

	idx := &sessionIndex{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session index: %w", err)
	}
	return idx, nil
}

func (idx *sessionIndex) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		started_at  TIMESTAMP NOT NULL,
		ended_at    TIMESTAMP,
		data_format TEXT NOT NULL,
		root_path   TEXT NOT NULL,
		status      TEXT NOT NULL
	);
	`
	_, err := idx.db.Exec(schema)
	return err
}

func (idx *sessionIndex) Close() error {
	return idx.db.Close()
}

func (idx *sessionIndex) Insert(rec SessionRecord) error {
	_, err := idx.db.Exec(`
		INSERT INTO sessions (id, name, started_at, data_format, root_path, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.StartedAt, rec.DataFormat, rec.RootPath, rec.Status)
	return err
}

func (idx *sessionIndex) Finish(id string, endedAt time.Time, status string) error {
	_, err := idx.db.Exec(`
		UPDATE sessions SET ended_at = ?, status = ? WHERE id = ?
	`, endedAt, status, id)
	return err
}

func (idx *sessionIndex) Get(name string) (SessionRecord, error) {
	row := idx.db.QueryRow(`
		SELECT id, name, started_at, ended_at, data_format, root_path, status
		FROM sessions WHERE name = ?
	`, name)
	return scanSession(row)
}

func (idx *sessionIndex) List() ([]SessionRecord, error) {
	rows, err := idx.db.Query(`
		SELECT id, name, started_at, ended_at, data_format, root_path, status
		FROM sessions ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	return scanSessionRows(row)
}

func scanSessionRows(row rowScanner) (SessionRecord, error) {
	var rec SessionRecord
	var endedAt sql.NullTime
	if err := row.Scan(&rec.ID, &rec.Name, &rec.StartedAt, &endedAt, &rec.DataFormat, &rec.RootPath, &rec.Status); err != nil {
		return SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	return rec, nil
}
