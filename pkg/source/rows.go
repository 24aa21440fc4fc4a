// CLAUDE:SUMMARY Typed rows for the three epidemiological CSV shapes (SARS daily, COVID summary, COVID daily) and read diagnostics.
package source

import (
	"fmt"
	"time"
)

// Source IDs used as keys in the import_sources catalog.
const (
	SourceSars         = "sars"
	SourceCovidSummary = "covid-summary"
	SourceCovidDaily   = "covid-daily"
)

// SarsRow is one line of the SARS 2003 cumulative daily dataset.
type SarsRow struct {
	Date       time.Time
	Country    string
	TotalCases int
	Deaths     int
	Recovered  int
}

// CovidSummaryRow is one country of the worldometer summary. It is the only
// source carrying continent information.
type CovidSummaryRow struct {
	Country           string
	Continent         string
	TotalConfirmed    *int64
	TotalDeaths       *float64
	TotalRecovered    *float64
	ActiveCases       *float64
	SeriousOrCritical *float64
	CasesPerMillion   *float64
	DeathsPerMillion  *float64
	TotalTests        *float64
	TestsPerMillion   *float64
	Population        *int64
}

// CovidDailyRow is one (country, day) line of the worldometer daily dataset.
// Missing numeric cells are nil.
type CovidDailyRow struct {
	Date                  time.Time
	Country               string
	CumulativeTotalCases  *float64
	DailyNewCases         *float64
	ActiveCases           *float64
	CumulativeTotalDeaths *float64
	DailyNewDeaths        *float64
}

// Stats counts records seen while reading a source.
type Stats struct {
	Read    int `json:"read"`
	Valid   int `json:"valid"`
	Skipped int `json:"skipped"`
}

// ReadError reports a source that could not be opened or parsed at all.
type ReadError struct {
	Source string
	Path   string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read source %s (%s): %v", e.Source, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
