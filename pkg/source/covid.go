// CLAUDE:SUMMARY Readers for the worldometer COVID-19 summary (country + continent) and daily snapshot CSVs.
package source

import (
	"io"
	"strings"
)

type covidSummaryRecord struct {
	Country           string `csv:"country"`
	Continent         string `csv:"continent"`
	TotalConfirmed    string `csv:"total_confirmed"`
	TotalDeaths       string `csv:"total_deaths"`
	TotalRecovered    string `csv:"total_recovered"`
	ActiveCases       string `csv:"active_cases"`
	SeriousOrCritical string `csv:"serious_or_critical"`
	CasesPerMillion   string `csv:"total_cases_per_1m_population"`
	DeathsPerMillion  string `csv:"total_deaths_per_1m_population"`
	TotalTests        string `csv:"total_tests"`
	TestsPerMillion   string `csv:"total_tests_per_1m_population"`
	Population        string `csv:"population"`
}

type covidDailyRecord struct {
	Date                  string `csv:"date"`
	Country               string `csv:"country"`
	CumulativeTotalCases  string `csv:"cumulative_total_cases"`
	DailyNewCases         string `csv:"daily_new_cases"`
	ActiveCases           string `csv:"active_cases"`
	CumulativeTotalDeaths string `csv:"cumulative_total_deaths"`
	DailyNewDeaths        string `csv:"daily_new_deaths"`
}

// ReadCovidSummary parses the worldometer summary CSV. Rows without a country
// are dropped. A blank continent is kept as "".
func ReadCovidSummary(r io.Reader) ([]CovidSummaryRow, Stats, error) {
	dec, err := newDecoder(r, "country")
	if err != nil {
		return nil, Stats{}, err
	}

	var rows []CovidSummaryRow
	st, err := decodeAll(dec, func(rec *covidSummaryRecord) bool {
		country := strings.TrimSpace(rec.Country)
		if country == "" {
			return false
		}
		rows = append(rows, CovidSummaryRow{
			Country:           country,
			Continent:         strings.TrimSpace(rec.Continent),
			TotalConfirmed:    parseInt64(rec.TotalConfirmed),
			TotalDeaths:       parseFloat(rec.TotalDeaths),
			TotalRecovered:    parseFloat(rec.TotalRecovered),
			ActiveCases:       parseFloat(rec.ActiveCases),
			SeriousOrCritical: parseFloat(rec.SeriousOrCritical),
			CasesPerMillion:   parseFloat(rec.CasesPerMillion),
			DeathsPerMillion:  parseFloat(rec.DeathsPerMillion),
			TotalTests:        parseFloat(rec.TotalTests),
			TestsPerMillion:   parseFloat(rec.TestsPerMillion),
			Population:        parseInt64(rec.Population),
		})
		return true
	})
	return rows, st, err
}

// ReadCovidDaily parses the worldometer daily CSV. Rows without a country or a
// parseable date are dropped; numeric cells that are blank or "nan" stay nil.
func ReadCovidDaily(r io.Reader) ([]CovidDailyRow, Stats, error) {
	dec, err := newDecoder(r, "date", "country")
	if err != nil {
		return nil, Stats{}, err
	}

	var rows []CovidDailyRow
	st, err := decodeAll(dec, func(rec *covidDailyRecord) bool {
		country := strings.TrimSpace(rec.Country)
		if country == "" {
			return false
		}
		date, ok := parseDate(rec.Date)
		if !ok {
			return false
		}
		rows = append(rows, CovidDailyRow{
			Date:                  date,
			Country:               country,
			CumulativeTotalCases:  parseFloat(rec.CumulativeTotalCases),
			DailyNewCases:         parseFloat(rec.DailyNewCases),
			ActiveCases:           parseFloat(rec.ActiveCases),
			CumulativeTotalDeaths: parseFloat(rec.CumulativeTotalDeaths),
			DailyNewDeaths:        parseFloat(rec.DailyNewDeaths),
		})
		return true
	})
	return rows, st, err
}

// ReadCovidSummaryFile opens path and parses it with ReadCovidSummary.
func ReadCovidSummaryFile(path, encoding string) ([]CovidSummaryRow, Stats, error) {
	f, err := openText(path, encoding)
	if err != nil {
		return nil, Stats{}, &ReadError{Source: SourceCovidSummary, Path: path, Err: err}
	}
	defer f.Close()

	rows, st, err := ReadCovidSummary(f)
	if err != nil {
		return nil, st, &ReadError{Source: SourceCovidSummary, Path: path, Err: err}
	}
	return rows, st, nil
}

// ReadCovidDailyFile opens path and parses it with ReadCovidDaily.
func ReadCovidDailyFile(path, encoding string) ([]CovidDailyRow, Stats, error) {
	f, err := openText(path, encoding)
	if err != nil {
		return nil, Stats{}, &ReadError{Source: SourceCovidDaily, Path: path, Err: err}
	}
	defer f.Close()

	rows, st, err := ReadCovidDaily(f)
	if err != nil {
		return nil, st, &ReadError{Source: SourceCovidDaily, Path: path, Err: err}
	}
	return rows, st, nil
}
