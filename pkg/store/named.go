package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// named holds the lookups shared by every table keyed by a unique name.
type named[T any] struct {
	db    *sqlx.DB
	table string
}

// FindByName returns the row named name, or nil when there is none.
func (n named[T]) FindByName(name string) (*T, error) {
	return n.findOne("name", name)
}

// FindByID returns the row with id, or nil when there is none.
func (n named[T]) FindByID(id int64) (*T, error) {
	return n.findOne("id", id)
}

// FindAll returns every row ordered by name.
func (n named[T]) FindAll() ([]T, error) {
	var rows []T
	if err := n.db.Select(&rows, "SELECT * FROM "+n.table+" ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list %s: %w", n.table, err)
	}
	return rows, nil
}

// Count returns the number of rows.
func (n named[T]) Count() (int64, error) {
	var c int64
	if err := n.db.Get(&c, "SELECT COUNT(*) FROM "+n.table); err != nil {
		return 0, fmt.Errorf("count %s: %w", n.table, err)
	}
	return c, nil
}

func (n named[T]) findOne(col string, arg any) (*T, error) {
	var row T
	err := n.db.Get(&row, n.db.Rebind("SELECT * FROM "+n.table+" WHERE "+col+" = ?"), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", n.table, col, err)
	}
	return &row, nil
}

func (n named[T]) insert(cols string, args ...any) (int64, error) {
	marks := "?"
	for i := 1; i < len(args); i++ {
		marks += ", ?"
	}
	q := n.db.Rebind("INSERT INTO " + n.table + " (" + cols + ") VALUES (" + marks + ") RETURNING id")
	var id int64
	if err := n.db.Get(&id, q, args...); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", n.table, err)
	}
	return id, nil
}

func (n named[T]) update(id int64, set string, args ...any) error {
	q := n.db.Rebind("UPDATE " + n.table + " SET " + set + " WHERE id = ?")
	if _, err := n.db.Exec(q, append(args, id)...); err != nil {
		return fmt.Errorf("update %s %d: %w", n.table, id, err)
	}
	return nil
}

type Continents struct{ named[Continent] }

// Save inserts c when it has no ID yet and assigns one; otherwise it renames it.
func (r *Continents) Save(c *Continent) error {
	if c.ID != 0 {
		return r.update(c.ID, "name = ?", c.Name)
	}
	id, err := r.insert("name", c.Name)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

type Pandemics struct{ named[Pandemic] }

// Save inserts p when it has no ID yet and assigns one; otherwise it renames it.
func (r *Pandemics) Save(p *Pandemic) error {
	if p.ID != 0 {
		return r.update(p.ID, "name = ?", p.Name)
	}
	id, err := r.insert("name", p.Name)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

type Countries struct{ named[Country] }

func (r *Countries) Save(c *Country) error {
	if c.ID != 0 {
		return r.update(c.ID, "name = ?, continent_id = ?", c.Name, c.ContinentID)
	}
	id, err := r.insert("name, continent_id", c.Name, c.ContinentID)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

type Regions struct{ named[Region] }

func (r *Regions) Save(reg *Region) error {
	if reg.ID != 0 {
		return r.update(reg.ID, "name = ?, continent_id = ?", reg.Name, reg.ContinentID)
	}
	id, err := r.insert("name, continent_id", reg.Name, reg.ContinentID)
	if err != nil {
		return err
	}
	reg.ID = id
	return nil
}

// FindByContinent returns the regions attached to continentID, by name.
func (r *Regions) FindByContinent(continentID int64) ([]Region, error) {
	var rows []Region
	err := r.db.Select(&rows, r.db.Rebind(`SELECT * FROM regions WHERE continent_id = ? ORDER BY name`), continentID)
	if err != nil {
		return nil, fmt.Errorf("list regions of continent %d: %w", continentID, err)
	}
	return rows, nil
}

// CountWithContinent returns how many regions have a continent attached.
func (r *Regions) CountWithContinent() (int64, error) {
	var c int64
	if err := r.db.Get(&c, `SELECT COUNT(*) FROM regions WHERE continent_id IS NOT NULL`); err != nil {
		return 0, fmt.Errorf("count regions with continent: %w", err)
	}
	return c, nil
}
