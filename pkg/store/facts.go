package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Facts is the total_by_day repository.
type Facts struct {
	db *sqlx.DB
}

// Upsert writes f under its (pandemic, region, day) key, replacing the counts
// of an existing row.
func (r *Facts) Upsert(f TotalByDay) error {
	_, err := r.db.Exec(r.db.Rebind(`INSERT INTO total_by_day
		(pandemic_id, region_id, date_by_day, case_count, death, recovered)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (pandemic_id, region_id, date_by_day) DO UPDATE SET
			case_count = excluded.case_count,
			death      = excluded.death,
			recovered  = excluded.recovered`),
		f.PandemicID, f.RegionID, f.Date, f.CaseCount, f.Death, f.Recovered,
	)
	if err != nil {
		return fmt.Errorf("upsert fact %d/%d/%s: %w", f.PandemicID, f.RegionID, f.Date, err)
	}
	return nil
}

// FindByPandemicAndRegion returns the timeline of one region, oldest first.
func (r *Facts) FindByPandemicAndRegion(pandemicID, regionID int64) ([]TotalByDay, error) {
	var rows []TotalByDay
	err := r.db.Select(&rows, r.db.Rebind(`SELECT * FROM total_by_day
		WHERE pandemic_id = ? AND region_id = ? ORDER BY date_by_day`), pandemicID, regionID)
	if err != nil {
		return nil, fmt.Errorf("timeline %d/%d: %w", pandemicID, regionID, err)
	}
	return rows, nil
}

// FindLatestByPandemicAndRegion returns the most recent row, or nil.
func (r *Facts) FindLatestByPandemicAndRegion(pandemicID, regionID int64) (*TotalByDay, error) {
	var f TotalByDay
	err := r.db.Get(&f, r.db.Rebind(`SELECT * FROM total_by_day
		WHERE pandemic_id = ? AND region_id = ? ORDER BY date_by_day DESC LIMIT 1`), pandemicID, regionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest %d/%d: %w", pandemicID, regionID, err)
	}
	return &f, nil
}

// LatestPerRegion returns, for every region with data under pandemicID, its
// most recent row, ordered by region ID.
func (r *Facts) LatestPerRegion(pandemicID int64) ([]TotalByDay, error) {
	var rows []TotalByDay
	err := r.db.Select(&rows, r.db.Rebind(`SELECT t.* FROM total_by_day t
		JOIN (SELECT region_id, MAX(date_by_day) AS last_day FROM total_by_day
		      WHERE pandemic_id = ? GROUP BY region_id) m
		  ON t.region_id = m.region_id AND t.date_by_day = m.last_day
		WHERE t.pandemic_id = ?
		ORDER BY t.region_id`), pandemicID, pandemicID)
	if err != nil {
		return nil, fmt.Errorf("latest per region %d: %w", pandemicID, err)
	}
	return rows, nil
}

func (r *Facts) SumCasesByPandemic(pandemicID int64) (int64, error) {
	return r.scalar("sum cases", `SELECT COALESCE(SUM(case_count), 0) FROM total_by_day WHERE pandemic_id = ?`, pandemicID)
}

func (r *Facts) SumDeathsByPandemic(pandemicID int64) (int64, error) {
	return r.scalar("sum deaths", `SELECT COALESCE(SUM(death), 0) FROM total_by_day WHERE pandemic_id = ?`, pandemicID)
}

func (r *Facts) CountDistinctRegionsByPandemic(pandemicID int64) (int64, error) {
	return r.scalar("count regions", `SELECT COUNT(DISTINCT region_id) FROM total_by_day WHERE pandemic_id = ?`, pandemicID)
}

func (r *Facts) SumCasesByPandemicAndContinent(pandemicID, continentID int64) (int64, error) {
	return r.scalar("sum cases by continent", `SELECT COALESCE(SUM(t.case_count), 0) FROM total_by_day t
		JOIN regions g ON g.id = t.region_id
		WHERE t.pandemic_id = ? AND g.continent_id = ?`, pandemicID, continentID)
}

func (r *Facts) SumDeathsByPandemicAndContinent(pandemicID, continentID int64) (int64, error) {
	return r.scalar("sum deaths by continent", `SELECT COALESCE(SUM(t.death), 0) FROM total_by_day t
		JOIN regions g ON g.id = t.region_id
		WHERE t.pandemic_id = ? AND g.continent_id = ?`, pandemicID, continentID)
}

// CountByRegion counts rows of regionID across all pandemics.
func (r *Facts) CountByRegion(regionID int64) (int64, error) {
	return r.scalar("count facts of region", `SELECT COUNT(*) FROM total_by_day WHERE region_id = ?`, regionID)
}

func (r *Facts) Count() (int64, error) {
	return r.scalar("count facts", `SELECT COUNT(*) FROM total_by_day`)
}

// List returns up to limit rows ordered by key.
func (r *Facts) List(limit int) ([]TotalByDay, error) {
	var rows []TotalByDay
	err := r.db.Select(&rows, r.db.Rebind(`SELECT * FROM total_by_day
		ORDER BY pandemic_id, region_id, date_by_day LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return rows, nil
}

func (r *Facts) scalar(what, q string, args ...any) (int64, error) {
	var n int64
	if err := r.db.Get(&n, r.db.Rebind(q), args...); err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return n, nil
}
