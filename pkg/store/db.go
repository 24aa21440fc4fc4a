// CLAUDE:SUMMARY Relational storage for the pandemic registry: schema per dialect (SQLite via modernc, PostgreSQL via lib/pq) and sqlx-backed repositories.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported driver names, as registered by modernc.org/sqlite and lib/pq.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB wraps the sqlx handle and hands out one repository per entity.
type DB struct {
	x      *sqlx.DB
	driver string
}

// Open connects to dsn with driver and creates any missing table.
func Open(driver, dsn string) (*DB, error) {
	var ddl []string
	switch driver {
	case DriverSQLite:
		ddl = sqliteSchema
	case DriverPostgres:
		ddl = postgresSchema
	default:
		return nil, fmt.Errorf("open store: unsupported driver %q", driver)
	}

	x, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if driver == DriverSQLite {
		// One connection: PRAGMAs are per connection and ":memory:" is per
		// connection too.
		x.SetMaxOpenConns(1)
		for _, p := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := x.Exec(p); err != nil {
				x.Close()
				return nil, fmt.Errorf("open store: %s: %w", p, err)
			}
		}
	}

	for _, stmt := range ddl {
		if _, err := x.Exec(stmt); err != nil {
			x.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &DB{x: x, driver: driver}, nil
}

// DB exposes the underlying handle, e.g. for the source catalog.
func (d *DB) DB() *sqlx.DB { return d.x }

// Driver returns the driver name the store was opened with.
func (d *DB) Driver() string { return d.driver }

// Close closes the connection pool.
func (d *DB) Close() error { return d.x.Close() }

func (d *DB) Continents() *Continents   { return &Continents{named[Continent]{d.x, "continents"}} }
func (d *DB) Pandemics() *Pandemics     { return &Pandemics{named[Pandemic]{d.x, "pandemics"}} }
func (d *DB) Countries() *Countries     { return &Countries{named[Country]{d.x, "countries"}} }
func (d *DB) Regions() *Regions         { return &Regions{named[Region]{d.x, "regions"}} }
func (d *DB) Facts() *Facts             { return &Facts{db: d.x} }
func (d *DB) Predictions() *Predictions { return &Predictions{db: d.x} }
func (d *DB) Runs() *Runs               { return &Runs{db: d.x} }
