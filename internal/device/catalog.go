package device

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// CatalogEntry is one registered headband: a device id stable across
// restarts (MAC or platform UUID), its last-known name, and when it was
// first registered.
type CatalogEntry struct {
	ID           string
	Name         string
	Address      string
	RegisteredAt time.Time
}

// Catalog persists the small set of devices the server has ever connected
// to, so GET /device/list can answer without a live scan.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (creating if absent) the SQLite-backed device
// catalogue at dbPath.
func OpenCatalog(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS devices (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		address       TEXT NOT NULL,
		registered_at TIMESTAMP NOT NULL
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Register records a device as known, idempotently: a second registration
// of the same id updates name/address but keeps the original registered_at.
func (c *Catalog) Register(id, name, address string) (CatalogEntry, error) {
	now := time.Now()

	_, err := c.db.Exec(`
		INSERT INTO devices (id, name, address, registered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, address = excluded.address
	`, id, name, address, now)
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("register device: %w", err)
	}

	return c.Get(id)
}

// Get returns the catalogue entry for id, or an error if unregistered.
func (c *Catalog) Get(id string) (CatalogEntry, error) {
	row := c.db.QueryRow(`
		SELECT id, name, address, registered_at FROM devices WHERE id = ?
	`, id)

	var e CatalogEntry
	if err := row.Scan(&e.ID, &e.Name, &e.Address, &e.RegisteredAt); err != nil {
		return CatalogEntry{}, &NotFoundError{Resource: "device", UUIDs: []string{id}}
	}
	return e, nil
}

// List returns every registered device, most recently registered first.
func (c *Catalog) List() ([]CatalogEntry, error) {
	rows, err := c.db.Query(`
		SELECT id, name, address, registered_at FROM devices ORDER BY registered_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Address, &e.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Forget removes a device from the catalogue.
func (c *Catalog) Forget(id string) error {
	_, err := c.db.Exec(`DELETE FROM devices WHERE id = ?`, id)
	return err
}
