package store

import (
	"database/sql/driver"
	"fmt"
	"time"
)

type Continent struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Pandemic struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Country is the presentation view of a summary-source country and its continent.
type Country struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	ContinentID *int64 `db:"continent_id" json:"continent_id,omitempty"`
}

// Region is the fact-table join target: one per normalized country name seen
// in any source.
type Region struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	ContinentID *int64 `db:"continent_id" json:"continent_id,omitempty"`
}

// TotalByDay is one (pandemic, region, day) observation.
type TotalByDay struct {
	PandemicID int64 `db:"pandemic_id" json:"pandemic_id"`
	RegionID   int64 `db:"region_id" json:"region_id"`
	Date       Date  `db:"date_by_day" json:"date"`
	CaseCount  int64 `db:"case_count" json:"case_count"`
	Death      int64 `db:"death" json:"death"`
	Recovered  int64 `db:"recovered" json:"recovered"`
}

// Prediction is a row of covid_predictions, written by an external model.
type Prediction struct {
	ID                 int64   `db:"id" json:"id"`
	PredictionDate     Date    `db:"prediction_date" json:"predictionDate"`
	RegionID           *int64  `db:"region_id" json:"regionId,omitempty"`
	RegionName         *string `db:"region_name" json:"regionName,omitempty"`
	ContinentName      *string `db:"continent_name" json:"continentName,omitempty"`
	PredictedCases     int64   `db:"predicted_cases" json:"predictedCases"`
	PredictedDeaths    *int64  `db:"predicted_deaths" json:"predictedDeaths,omitempty"`
	PredictedRecovered *int64  `db:"predicted_recovered" json:"predictedRecovered,omitempty"`
	ModelVersion       *string `db:"model_version" json:"modelVersion,omitempty"`
	CreatedAt          *string `db:"created_at" json:"createdAt,omitempty"`
}

// Run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunFailed  = "failed"
)

// Run is one recorded pipeline execution. Times are Unix nanoseconds.
type Run struct {
	ID         string  `db:"id" json:"id"`
	StartedAt  int64   `db:"started_at" json:"started_at"`
	FinishedAt *int64  `db:"finished_at" json:"finished_at,omitempty"`
	Status     string  `db:"status" json:"status"`
	Report     *string `db:"report" json:"report,omitempty"`
	Error      *string `db:"error" json:"error,omitempty"`
}

const dateLayout = "2006-01-02"

// Date is a calendar day in UTC. It is stored as "YYYY-MM-DD" so that both
// SQLite TEXT and PostgreSQL DATE columns compare and sort correctly.
type Date struct {
	time.Time
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) Value() (driver.Value, error) { return d.Format(dateLayout), nil }

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("scan date: unsupported type %T", src)
}

func (d *Date) parse(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("scan date: %w", err)
	}
	*d = Date{t}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date: expected JSON string, got %s", s)
	}
	return d.parse(s[1 : len(s)-1])
}
