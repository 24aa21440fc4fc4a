package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Predictions reads covid_predictions. Rows come from an external model;
// Insert exists for that writer and for fixtures.
type Predictions struct {
	db *sqlx.DB
}

func (r *Predictions) FindAll() ([]Prediction, error) {
	var rows []Prediction
	if err := r.db.Select(&rows, `SELECT * FROM covid_predictions ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return rows, nil
}

// Page returns page (0-based) of size rows ordered by ID.
func (r *Predictions) Page(page, size int) ([]Prediction, error) {
	if page < 0 || size <= 0 {
		return nil, fmt.Errorf("page predictions: invalid page %d size %d", page, size)
	}
	var rows []Prediction
	err := r.db.Select(&rows, r.db.Rebind(`SELECT * FROM covid_predictions ORDER BY id LIMIT ? OFFSET ?`), size, page*size)
	if err != nil {
		return nil, fmt.Errorf("page predictions: %w", err)
	}
	return rows, nil
}

func (r *Predictions) Count() (int64, error) {
	var n int64
	if err := r.db.Get(&n, `SELECT COUNT(*) FROM covid_predictions`); err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}

func (r *Predictions) Insert(p *Prediction) error {
	q := r.db.Rebind(`INSERT INTO covid_predictions
		(prediction_date, region_id, region_name, continent_name,
		 predicted_cases, predicted_deaths, predicted_recovered, model_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := r.db.Get(&p.ID, q,
		p.PredictionDate, p.RegionID, p.RegionName, p.ContinentName,
		p.PredictedCases, p.PredictedDeaths, p.PredictedRecovered, p.ModelVersion,
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}
