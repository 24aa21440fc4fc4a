package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

const sarsCSV = "Date,Country,Cumulative number of case(s),Number of deaths,Number recovered\n" +
	"2003-03-17,Germany,1,0,0\n" +
	"2003-03-17,US,3,0,0\n" +
	"2003-03-18,,2,0,0\n" +
	"not-a-date,France,1,0,0\n" +
	"2003-03-19,Canada,,,\n" +
	"2003-03-20,Hong Kong SAR, China,95.0,1,2\n"

func TestReadSars(t *testing.T) {
	rows, st, err := ReadSars(strings.NewReader(sarsCSV))
	if err != nil {
		t.Fatalf("ReadSars: %v", err)
	}
	if st.Read != 6 || st.Valid != 3 || st.Skipped != 3 {
		t.Errorf("stats = %+v, want read=6 valid=3 skipped=3", st)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	us := rows[1]
	if us.Country != "US" || !us.Date.Equal(day("2003-03-17")) || us.TotalCases != 3 || us.Deaths != 0 {
		t.Errorf("US row = %+v", us)
	}
	canada := rows[2]
	if canada.Country != "Canada" || canada.TotalCases != 0 || canada.Deaths != 0 || canada.Recovered != 0 {
		t.Errorf("blank counts should read as 0, got %+v", canada)
	}
}

func TestReadSars_QuotedCountryAndFloatCounts(t *testing.T) {
	in := "Date,Country,Cumulative number of case(s),Number of deaths,Number recovered\n" +
		"2003-04-01,\"Hong Kong SAR, China\",95.0,1,2\n"
	rows, _, err := ReadSars(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadSars: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Country != "Hong Kong SAR, China" || rows[0].TotalCases != 95 || rows[0].Recovered != 2 {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestReadSars_BOM(t *testing.T) {
	r, err := decodeText(strings.NewReader("\ufeff"+sarsCSV), "")
	if err != nil {
		t.Fatalf("decodeText: %v", err)
	}
	rows, _, err := ReadSars(r)
	if err != nil {
		t.Fatalf("ReadSars with BOM: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
}

func TestReadSars_MissingColumn(t *testing.T) {
	_, _, err := ReadSars(strings.NewReader("Day,Nation\n2003-03-17,US\n"))
	if err == nil {
		t.Fatal("expected error for missing date/country columns")
	}
}

func TestReadSars_Empty(t *testing.T) {
	if _, _, err := ReadSars(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

const dailyCSV = "date,country,cumulative_total_cases,daily_new_cases,active_cases,cumulative_total_deaths,daily_new_deaths\n" +
	"2020-2-15,Afghanistan,0.0,,0.0,0.0,\n" +
	"2020-2-16,USA,15.0,nan,12.0,,\n" +
	"2020-02-17,Italy,3.7,1,,0,0\n" +
	",Spain,1,1,1,1,1\n" +
	"2020-2-18,,1,1,1,1,1\n"

func TestReadCovidDaily(t *testing.T) {
	rows, st, err := ReadCovidDaily(strings.NewReader(dailyCSV))
	if err != nil {
		t.Fatalf("ReadCovidDaily: %v", err)
	}
	if st.Read != 5 || st.Valid != 3 || st.Skipped != 2 {
		t.Errorf("stats = %+v, want read=5 valid=3 skipped=2", st)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	afg := rows[0]
	if !afg.Date.Equal(day("2020-02-15")) {
		t.Errorf("unpadded date parsed as %v", afg.Date)
	}
	if afg.DailyNewCases != nil {
		t.Errorf("blank daily_new_cases = %v, want nil", *afg.DailyNewCases)
	}

	usa := rows[1]
	if usa.CumulativeTotalCases == nil || *usa.CumulativeTotalCases != 15 {
		t.Errorf("USA cumulative cases = %v, want 15", usa.CumulativeTotalCases)
	}
	if usa.DailyNewCases != nil {
		t.Error("nan should read as nil")
	}
	if usa.CumulativeTotalDeaths != nil {
		t.Error("blank deaths should read as nil")
	}

	italy := rows[2]
	if italy.CumulativeTotalCases == nil || *italy.CumulativeTotalCases != 3.7 {
		t.Errorf("Italy cases = %v, want 3.7", italy.CumulativeTotalCases)
	}
	if italy.ActiveCases != nil {
		t.Error("blank active cases should read as nil")
	}
}

const summaryCSV = "country,continent,total_confirmed,total_deaths,total_recovered,active_cases,serious_or_critical,total_cases_per_1m_population,total_deaths_per_1m_population,total_tests,total_tests_per_1m_population,population\n" +
	"USA,North America,100,10.0,50.0,40.0,,300.5,30.1,1000,3000,331000000\n" +
	",Europe,1,1,1,1,1,1,1,1,1,1\n" +
	"France,Europe,,,,,,,,,,\n" +
	"Diamond Princess,,712,13,699,0,0,,,,,\n"

func TestReadCovidSummary(t *testing.T) {
	rows, st, err := ReadCovidSummary(strings.NewReader(summaryCSV))
	if err != nil {
		t.Fatalf("ReadCovidSummary: %v", err)
	}
	if st.Valid != 3 || st.Skipped != 1 {
		t.Errorf("stats = %+v, want valid=3 skipped=1", st)
	}

	usa := rows[0]
	if usa.Continent != "North America" {
		t.Errorf("continent = %q", usa.Continent)
	}
	if usa.TotalConfirmed == nil || *usa.TotalConfirmed != 100 {
		t.Errorf("total_confirmed = %v", usa.TotalConfirmed)
	}
	if usa.Population == nil || *usa.Population != 331000000 {
		t.Errorf("population = %v", usa.Population)
	}
	if usa.SeriousOrCritical != nil {
		t.Error("blank serious_or_critical should be nil")
	}

	if rows[1].TotalConfirmed != nil || rows[1].Population != nil {
		t.Error("France numerics should all be nil")
	}
	if rows[2].Continent != "" {
		t.Errorf("Diamond Princess continent = %q, want empty", rows[2].Continent)
	}
}

func TestReadFile_Encoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	content := []byte("country,continent\nCura\xe7ao,North America\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	rows, _, err := ReadCovidSummaryFile(path, "windows-1252")
	if err != nil {
		t.Fatalf("ReadCovidSummaryFile: %v", err)
	}
	if len(rows) != 1 || rows[0].Country != "Cura\u00e7ao" {
		t.Errorf("rows = %+v, want Curacao", rows)
	}
}

func TestReadFile_UnknownEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	os.WriteFile(path, []byte("country,continent\n"), 0o644)

	if _, _, err := ReadCovidSummaryFile(path, "klingon-8"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, _, err := ReadSarsFile(filepath.Join(t.TempDir(), "nope.csv"), "")
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *ReadError", err)
	}
	if re.Source != SourceSars {
		t.Errorf("Source = %q, want %q", re.Source, SourceSars)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("ReadError should unwrap to os.ErrNotExist")
	}
}

func TestReadCovidDailyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.csv")
	os.WriteFile(path, []byte(dailyCSV), 0o644)

	rows, st, err := ReadCovidDailyFile(path, "utf-8")
	if err != nil {
		t.Fatalf("ReadCovidDailyFile: %v", err)
	}
	if len(rows) != 3 || st.Valid != 3 {
		t.Errorf("rows = %d, stats = %+v", len(rows), st)
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"", nil},
		{"nan", nil},
		{"NaN", nil},
		{"N/A", nil},
		{"inf", nil},
		{"abc", nil},
		{"1,234.5", ptr(1234.5)},
		{" 7 ", ptr(7)},
	}
	for _, tt := range tests {
		got := parseFloat(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("parseFloat(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("parseFloat(%q) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func TestParseInt64_OutOfRange(t *testing.T) {
	for _, in := range []string{"1e20", "9.3e18", "-1e19"} {
		if got := parseInt64(in); got != nil {
			t.Errorf("parseInt64(%q) = %d, want nil", in, *got)
		}
	}
	if got := parseInt64("331000000"); got == nil || *got != 331000000 {
		t.Errorf("parseInt64(331000000) = %v", got)
	}
	if got := intOrZero("1e20"); got != 0 {
		t.Errorf("intOrZero(1e20) = %d, want 0", got)
	}
}

func ptr(f float64) *float64 { return &f }
