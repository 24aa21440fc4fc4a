package source

import (
	"io"
	"strings"
)

// sarsRecord binds the lowercased header of sars_2003_complete_dataset_clean.csv.
type sarsRecord struct {
	Date      string `csv:"date"`
	Country   string `csv:"country"`
	Cases     string `csv:"cumulative number of case(s)"`
	Deaths    string `csv:"number of deaths"`
	Recovered string `csv:"number recovered"`
}

// ReadSars parses the SARS daily CSV. Rows without a country or a parseable
// date are dropped and counted in Stats.Skipped. Blank counts read as 0.
func ReadSars(r io.Reader) ([]SarsRow, Stats, error) {
	dec, err := newDecoder(r, "date", "country")
	if err != nil {
		return nil, Stats{}, err
	}

	var rows []SarsRow
	st, err := decodeAll(dec, func(rec *sarsRecord) bool {
		country := strings.TrimSpace(rec.Country)
		if country == "" {
			return false
		}
		date, ok := parseDate(rec.Date)
		if !ok {
			return false
		}
		rows = append(rows, SarsRow{
			Date:       date,
			Country:    country,
			TotalCases: intOrZero(rec.Cases),
			Deaths:     intOrZero(rec.Deaths),
			Recovered:  intOrZero(rec.Recovered),
		})
		return true
	})
	return rows, st, err
}

// ReadSarsFile opens path and parses it with ReadSars.
func ReadSarsFile(path, encoding string) ([]SarsRow, Stats, error) {
	f, err := openText(path, encoding)
	if err != nil {
		return nil, Stats{}, &ReadError{Source: SourceSars, Path: path, Err: err}
	}
	defer f.Close()

	rows, st, err := ReadSars(f)
	if err != nil {
		return nil, st, &ReadError{Source: SourceSars, Path: path, Err: err}
	}
	return rows, st, nil
}
