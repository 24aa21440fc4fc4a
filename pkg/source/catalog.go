package source

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Definition describes one configured CSV source.
type Definition struct {
	ID          string
	Pandemic    string
	Description string
	Location    string
	Encoding    string
}

// Entry is a row of the import_sources table.
type Entry struct {
	ID          string  `db:"source_id" json:"id"`
	Pandemic    string  `db:"pandemic" json:"pandemic"`
	Description string  `db:"description" json:"description"`
	Location    string  `db:"location" json:"location"`
	Configured  string  `db:"config_location" json:"config_location"`
	Encoding    string  `db:"encoding" json:"encoding,omitempty"`
	LastCheck   *int64  `db:"last_check" json:"last_check,omitempty"`
	LastStatus  *int    `db:"last_status" json:"last_status,omitempty"`
	LastError   *string `db:"last_error" json:"last_error,omitempty"`
	LastRead    *int64  `db:"last_read" json:"last_read,omitempty"`
	RowsRead    *int    `db:"rows_read" json:"rows_read,omitempty"`
	RowsValid   *int    `db:"rows_valid" json:"rows_valid,omitempty"`
	ReadError   *string `db:"read_error" json:"read_error,omitempty"`
	UpdatedAt   int64   `db:"updated_at" json:"updated_at"`
}

// ErrUnknownSource is returned for a source ID absent from the catalog.
var ErrUnknownSource = errors.New("source not found in import_sources")

// Catalog manages the import_sources table: where each source lives and what
// happened the last time it was checked or read.
type Catalog struct {
	db *sqlx.DB
}

const catalogDDL = `CREATE TABLE IF NOT EXISTS import_sources (
	source_id       TEXT PRIMARY KEY,
	pandemic        TEXT NOT NULL,
	description     TEXT NOT NULL,
	location        TEXT NOT NULL,
	config_location TEXT NOT NULL DEFAULT '',
	encoding        TEXT NOT NULL DEFAULT '',
	last_check      BIGINT,
	last_status     INTEGER,
	last_error      TEXT,
	last_read       BIGINT,
	rows_read       INTEGER,
	rows_valid      INTEGER,
	read_error      TEXT,
	updated_at      BIGINT NOT NULL
)`

// OpenCatalog ensures the import_sources table exists in db.
func OpenCatalog(db *sqlx.DB) (*Catalog, error) {
	if _, err := db.Exec(catalogDDL); err != nil {
		return nil, fmt.Errorf("create import_sources table: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Seed inserts or refreshes a row per definition. Pandemic, description and
// encoding always follow the definition. The location follows it only when the
// configured location changed since the previous Seed, so a location set with
// SetLocation survives reseeding with the same configuration.
func (c *Catalog) Seed(defs []Definition) error {
	q := c.db.Rebind(`INSERT INTO import_sources
		(source_id, pandemic, description, location, config_location, encoding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET
			pandemic        = excluded.pandemic,
			description     = excluded.description,
			encoding        = excluded.encoding,
			location        = CASE WHEN import_sources.config_location <> excluded.config_location
			                       THEN excluded.location ELSE import_sources.location END,
			config_location = excluded.config_location,
			updated_at      = excluded.updated_at`)

	now := time.Now().Unix()
	for _, d := range defs {
		if _, err := c.db.Exec(q, d.ID, d.Pandemic, d.Description, d.Location, d.Location, d.Encoding, now); err != nil {
			return fmt.Errorf("seed %s: %w", d.ID, err)
		}
	}
	return nil
}

// Get returns the catalog entry for id.
func (c *Catalog) Get(id string) (*Entry, error) {
	var e Entry
	err := c.db.Get(&e, c.db.Rebind(`SELECT * FROM import_sources WHERE source_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, ErrUnknownSource)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return &e, nil
}

// Location returns where source id is currently read from.
func (c *Catalog) Location(id string) (string, error) {
	e, err := c.Get(id)
	if err != nil {
		return "", err
	}
	return e.Location, nil
}

// SetLocation points a source at a new path or URL.
func (c *Catalog) SetLocation(id, location string) error {
	res, err := c.db.Exec(
		c.db.Rebind(`UPDATE import_sources SET location = ?, updated_at = ? WHERE source_id = ?`),
		location, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("set location for %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("set location for %s: %w", id, ErrUnknownSource)
	}
	return nil
}

// UpdateCheck persists the result of an availability check.
func (c *Catalog) UpdateCheck(id string, status int, checkErr string) error {
	_, err := c.db.Exec(
		c.db.Rebind(`UPDATE import_sources SET last_check = ?, last_status = ?, last_error = ? WHERE source_id = ?`),
		time.Now().Unix(), status, nullString(checkErr), id,
	)
	if err != nil {
		return fmt.Errorf("update check for %s: %w", id, err)
	}
	return nil
}

// RecordRead persists the outcome of reading a source during a load.
func (c *Catalog) RecordRead(id string, st Stats, readErr error) error {
	var msg string
	if readErr != nil {
		msg = readErr.Error()
	}
	_, err := c.db.Exec(
		c.db.Rebind(`UPDATE import_sources SET last_read = ?, rows_read = ?, rows_valid = ?, read_error = ? WHERE source_id = ?`),
		time.Now().Unix(), st.Read, st.Valid, nullString(msg), id,
	)
	if err != nil {
		return fmt.Errorf("record read for %s: %w", id, err)
	}
	return nil
}

// List returns every catalog entry ordered by ID.
func (c *Catalog) List() ([]Entry, error) {
	var entries []Entry
	if err := c.db.Select(&entries, `SELECT * FROM import_sources ORDER BY source_id`); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return entries, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
