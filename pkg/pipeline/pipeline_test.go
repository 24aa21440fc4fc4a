package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/pandemic-registry/pkg/normalize"
	"github.com/hazyhaar/pandemic-registry/pkg/source"
	"github.com/hazyhaar/pandemic-registry/pkg/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "pandemic.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newPipeline(db *store.DB, opts ...Option) *Pipeline {
	return New(StoreRepositories(db), append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func f64(f float64) *float64 { return &f }

func region(t *testing.T, db *store.DB, name string) *store.Region {
	t.Helper()
	r, err := db.Regions().FindByName(name)
	if err != nil {
		t.Fatalf("FindByName(%q): %v", name, err)
	}
	return r
}

func continentName(t *testing.T, db *store.DB, id *int64) string {
	t.Helper()
	if id == nil {
		return ""
	}
	c, err := db.Continents().FindByID(*id)
	if err != nil || c == nil {
		t.Fatalf("continent %d: %v", *id, err)
	}
	return c.Name
}

func counts(t *testing.T, db *store.DB) [5]int64 {
	t.Helper()
	var out [5]int64
	fns := []func() (int64, error){
		db.Continents().Count, db.Regions().Count, db.Pandemics().Count,
		db.Countries().Count, db.Facts().Count,
	}
	for i, fn := range fns {
		n, err := fn()
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		out[i] = n
	}
	return out
}

func TestRun_SarsScenario(t *testing.T) {
	db := tempStore(t)
	in := Inputs{
		Sars:         []source.SarsRow{{Date: date("2003-03-17"), Country: "US", TotalCases: 3}},
		CovidSummary: []source.CovidSummaryRow{{Country: "US", Continent: "North America"}},
	}

	rep, err := newPipeline(db).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Sars.Success != 1 || rep.Sars.Failed() != 0 {
		t.Errorf("sars result = %+v", rep.Sars)
	}

	us := region(t, db, "United States")
	if us == nil {
		t.Fatal("region United States not created")
	}
	if got := continentName(t, db, us.ContinentID); got != "North America" {
		t.Errorf("continent = %q, want North America", got)
	}
	if n, _ := db.Regions().Count(); n != 1 {
		t.Errorf("regions = %d, want 1", n)
	}

	sars, _ := db.Pandemics().FindByName("SARS")
	if sars == nil {
		t.Fatal("pandemic SARS missing")
	}
	facts, _ := db.Facts().FindByPandemicAndRegion(sars.ID, us.ID)
	if len(facts) != 1 {
		t.Fatalf("facts = %d, want 1", len(facts))
	}
	f := facts[0]
	if f.Date.String() != "2003-03-17" || f.CaseCount != 3 || f.Death != 0 || f.Recovered != 0 {
		t.Errorf("fact = %+v", f)
	}

	country, _ := db.Countries().FindByName("United States")
	if country == nil || continentName(t, db, country.ContinentID) != "North America" {
		t.Errorf("country = %+v", country)
	}
}

func TestRun_SpellingsCollapse(t *testing.T) {
	db := tempStore(t)
	in := Inputs{
		Sars:       []source.SarsRow{{Date: date("2003-03-17"), Country: "US", TotalCases: 3}},
		CovidDaily: []source.CovidDailyRow{{Date: date("2020-03-01"), Country: "USA", CumulativeTotalCases: f64(75)}},
	}
	rep, err := newPipeline(db).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n, _ := db.Regions().Count(); n != 1 {
		t.Errorf("regions = %d, want 1", n)
	}
	if rep.FactsWritten != 2 {
		t.Errorf("facts written = %d, want 2", rep.FactsWritten)
	}
}

func fixtureInputs() Inputs {
	return Inputs{
		Sars: []source.SarsRow{
			{Date: date("2003-03-17"), Country: "Canada", TotalCases: 5},
			{Date: date("2003-03-18"), Country: "Canada", TotalCases: 8, Deaths: 1},
			{Date: date("2003-03-17"), Country: "Hong Kong SAR, China", TotalCases: 95},
		},
		CovidSummary: []source.CovidSummaryRow{
			{Country: "Canada", Continent: "North America"},
			{Country: "France", Continent: "Europe"},
			{Country: "Diamond Princess"},
		},
		CovidDaily: []source.CovidDailyRow{
			{Date: date("2020-02-15"), Country: "France", CumulativeTotalCases: f64(12.9), CumulativeTotalDeaths: f64(1), ActiveCases: f64(10)},
			{Date: date("2020-02-15"), Country: "Canada", CumulativeTotalCases: nil},
			{Date: date("2020-02-16"), Country: "Diamond Princess", CumulativeTotalCases: f64(355)},
		},
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := tempStore(t)
	p := newPipeline(db)

	if _, err := p.Run(context.Background(), fixtureInputs()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := counts(t, db)

	rep, err := p.Run(context.Background(), fixtureInputs())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	second := counts(t, db)

	if first != second {
		t.Errorf("row counts changed between runs: %v -> %v", first, second)
	}
	want := [5]int64{2, 4, 2, 2, 6}
	if first != want {
		t.Errorf("counts (continents, regions, pandemics, countries, facts) = %v, want %v", first, want)
	}
	if rep.ContinentsCreated != 0 || rep.PandemicsCreated != 0 || rep.Regions.Created != 0 {
		t.Errorf("second run created rows: %+v", rep)
	}
}

func TestRun_FactsReferenceExistingRows(t *testing.T) {
	db := tempStore(t)
	if _, err := newPipeline(db).Run(context.Background(), fixtureInputs()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	facts, _ := db.Facts().List(100)
	for _, f := range facts {
		if p, _ := db.Pandemics().FindByID(f.PandemicID); p == nil {
			t.Errorf("fact %+v references missing pandemic", f)
		}
		if r, _ := db.Regions().FindByID(f.RegionID); r == nil {
			t.Errorf("fact %+v references missing region", f)
		}
	}
}

func TestRun_CovidDailyConversion(t *testing.T) {
	db := tempStore(t)
	if _, err := newPipeline(db).Run(context.Background(), fixtureInputs()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	covid, _ := db.Pandemics().FindByName(normalize.PandemicCOVID)

	france := region(t, db, "France")
	facts, _ := db.Facts().FindByPandemicAndRegion(covid.ID, france.ID)
	if len(facts) != 1 {
		t.Fatalf("France facts = %d", len(facts))
	}
	if f := facts[0]; f.CaseCount != 12 || f.Death != 1 || f.Recovered != 10 {
		t.Errorf("France fact = %+v, want cases 12 deaths 1 recovered 10", f)
	}

	canada := region(t, db, "Canada")
	facts, _ = db.Facts().FindByPandemicAndRegion(covid.ID, canada.ID)
	if len(facts) != 1 || facts[0].CaseCount != 0 {
		t.Errorf("null cumulative cases should load as 0, got %+v", facts)
	}
}

func TestRun_RegionContinentBackfilledNeverCleared(t *testing.T) {
	db := tempStore(t)
	p := newPipeline(db)
	sars := []source.SarsRow{{Date: date("2003-03-17"), Country: "Canada", TotalCases: 1}}

	// No summary: region created without continent.
	if _, err := p.Run(context.Background(), Inputs{Sars: sars}); err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	if r := region(t, db, "Canada"); r.ContinentID != nil {
		t.Fatalf("continent = %v, want nil", *r.ContinentID)
	}

	rep, err := p.Run(context.Background(), Inputs{
		Sars:         sars,
		CovidSummary: []source.CovidSummaryRow{{Country: "Canada", Continent: "North America"}},
	})
	if err != nil {
		t.Fatalf("Run 2: %v", err)
	}
	if rep.Regions.Backfilled != 1 {
		t.Errorf("backfilled = %d, want 1", rep.Regions.Backfilled)
	}
	if got := continentName(t, db, region(t, db, "Canada").ContinentID); got != "North America" {
		t.Fatalf("continent after backfill = %q", got)
	}

	// A later, different continent does not replace the first.
	if _, err := p.Run(context.Background(), Inputs{
		Sars:         sars,
		CovidSummary: []source.CovidSummaryRow{{Country: "Canada", Continent: "Europe"}},
	}); err != nil {
		t.Fatalf("Run 3: %v", err)
	}
	if got := continentName(t, db, region(t, db, "Canada").ContinentID); got != "North America" {
		t.Errorf("continent after conflicting run = %q, want North America", got)
	}

	// Nor does a run without any summary clear it.
	if _, err := p.Run(context.Background(), Inputs{Sars: sars}); err != nil {
		t.Fatalf("Run 4: %v", err)
	}
	if region(t, db, "Canada").ContinentID == nil {
		t.Error("continent cleared by a run without summary")
	}
}

func TestRun_MissingSourcesSkip(t *testing.T) {
	db := tempStore(t)
	rep, err := newPipeline(db).Run(context.Background(), Inputs{})
	if err != nil {
		t.Fatalf("Run with no inputs: %v", err)
	}
	want := []string{"continents", "sars", "covid-daily"}
	if strings.Join(rep.Skipped, ",") != strings.Join(want, ",") {
		t.Errorf("skipped = %v, want %v", rep.Skipped, want)
	}
	if n, _ := db.Pandemics().Count(); n != 2 {
		t.Errorf("pandemics = %d, want 2 even without data", n)
	}
}

func TestRun_RecordsRuns(t *testing.T) {
	db := tempStore(t)
	p := newPipeline(db, WithRunRecorder(db.Runs()))

	rep, err := p.Run(context.Background(), fixtureInputs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.RunID == "" {
		t.Fatal("report has no run ID")
	}
	run, err := db.Runs().Latest()
	if err != nil || run == nil {
		t.Fatalf("Latest: %v, %v", run, err)
	}
	if run.ID != rep.RunID || run.Status != store.RunSuccess {
		t.Errorf("run = %+v", run)
	}
	if run.Report == nil || !strings.Contains(*run.Report, `"facts_written":6`) {
		t.Errorf("report = %v", run.Report)
	}
}

type failingContinents struct{ ContinentStore }

func (failingContinents) FindByName(string) (*store.Continent, error) {
	return nil, errors.New("disk on fire")
}

func TestRun_FatalRegistrarError(t *testing.T) {
	db := tempStore(t)
	repos := StoreRepositories(db)
	repos.Continents = failingContinents{repos.Continents}
	p := New(repos, WithLogger(quietLogger()), WithRunRecorder(db.Runs()))

	_, err := p.Run(context.Background(), fixtureInputs())
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("err = %v, want registrar failure", err)
	}
	if n, _ := db.Facts().Count(); n != 0 {
		t.Errorf("facts = %d after fatal error, want 0", n)
	}
	run, _ := db.Runs().Latest()
	if run == nil || run.Status != store.RunFailed {
		t.Errorf("run = %+v, want failed", run)
	}
}

type failingCountries struct{ CountryStore }

func (failingCountries) FindByName(string) (*store.Country, error) {
	return nil, errors.New("disk on fire")
}

func TestRun_FatalErrorKeepsFactCounts(t *testing.T) {
	db := tempStore(t)
	repos := StoreRepositories(db)
	repos.Countries = failingCountries{repos.Countries}
	p := New(repos, WithLogger(quietLogger()), WithRunRecorder(db.Runs()))

	rep, err := p.Run(context.Background(), fixtureInputs())
	if err == nil {
		t.Fatal("expected country materialization failure")
	}
	if rep.FactsWritten != 6 {
		t.Errorf("FactsWritten = %d, want 6", rep.FactsWritten)
	}
	run, _ := db.Runs().Latest()
	if run == nil || run.Status != store.RunFailed {
		t.Fatalf("run = %+v, want failed", run)
	}
	if run.Report == nil || !strings.Contains(*run.Report, `"facts_written":6`) {
		t.Errorf("recorded report = %v", run.Report)
	}
}

// flakyFacts rejects every fact of one region.
type flakyFacts struct {
	FactStore
	regionID int64
}

func (f flakyFacts) Upsert(t store.TotalByDay) error {
	if t.RegionID == f.regionID {
		return errors.New("constraint violation")
	}
	return f.FactStore.Upsert(t)
}

func prepared(t *testing.T, p *Pipeline, summary []source.CovidSummaryRow, countries ...string) *State {
	t.Helper()
	ctx := context.Background()
	st := NewState()
	p.ExtractContinents(st, summary)
	if _, err := p.RegisterContinents(ctx, st); err != nil {
		t.Fatalf("RegisterContinents: %v", err)
	}
	if _, err := p.RegisterPandemics(ctx, st); err != nil {
		t.Fatalf("RegisterPandemics: %v", err)
	}
	if _, err := p.RegisterRegions(ctx, st, countries); err != nil {
		t.Fatalf("RegisterRegions: %v", err)
	}
	return st
}

func TestLoadFacts_PartialFailure(t *testing.T) {
	db := tempStore(t)
	p := newPipeline(db)
	st := prepared(t, p, nil, "France", "Peru", "Chile")

	repos := StoreRepositories(db)
	repos.Facts = flakyFacts{FactStore: repos.Facts, regionID: st.Regions["Peru"].ID}
	p = New(repos, WithLogger(quietLogger()))

	obs := []Observation{
		{Country: "France", Date: date("2020-03-01"), Cases: 1},
		{Country: "Peru", Date: date("2020-03-01"), Cases: 2},
		{Country: "Atlantis", Date: date("2020-03-01"), Cases: 3},
		{Country: "", Date: date("2020-03-01"), Cases: 4},
		{Country: "Chile", Cases: 5},
		{Country: "Chile", Date: date("2020-03-02"), Cases: 6},
	}
	res, err := p.LoadFacts(context.Background(), st, normalize.PandemicCOVID, obs)
	if err != nil {
		t.Fatalf("LoadFacts: %v", err)
	}
	want := LoadResult{Success: 2, Invalid: 2, Unresolved: 1, Rejected: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if res.Failed() != 4 {
		t.Errorf("Failed() = %d, want 4", res.Failed())
	}
	if n, _ := db.Facts().Count(); n != 2 {
		t.Errorf("facts = %d, want 2", n)
	}
}

func TestLoadFacts_LastRowOfKeyWins(t *testing.T) {
	db := tempStore(t)
	p := newPipeline(db)
	st := prepared(t, p, nil, "France")

	obs := []Observation{
		{Country: "France", Date: date("2020-03-02"), Cases: 20},
		{Country: "France", Date: date("2020-03-01"), Cases: 10},
		{Country: "France", Date: date("2020-03-02"), Cases: 25},
	}
	res, err := p.LoadFacts(context.Background(), st, normalize.PandemicCOVID, obs)
	if err != nil || res.Success != 3 {
		t.Fatalf("LoadFacts = %+v, %v", res, err)
	}

	covid := st.Pandemics[normalize.PandemicCOVID]
	facts, _ := db.Facts().FindByPandemicAndRegion(covid.ID, st.Regions["France"].ID)
	if len(facts) != 2 {
		t.Fatalf("facts = %d, want 2", len(facts))
	}
	if facts[1].CaseCount != 25 {
		t.Errorf("2020-03-02 cases = %d, want 25 (last row wins)", facts[1].CaseCount)
	}
	if obs[0].Cases != 20 {
		t.Error("LoadFacts must not reorder the caller's slice")
	}
}

func TestLoadFacts_Cancelled(t *testing.T) {
	db := tempStore(t)
	p := newPipeline(db)
	st := prepared(t, p, nil, "France")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.LoadFacts(ctx, st, normalize.PandemicSARS, []Observation{{Country: "France", Date: date("2003-03-17")}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestStagePreconditions(t *testing.T) {
	db := tempStore(t)
	p := newPipeline(db)
	ctx := context.Background()

	st := NewState()
	if _, err := p.RegisterContinents(ctx, st); !errors.Is(err, ErrContinentsNotExtracted) {
		t.Errorf("RegisterContinents err = %v", err)
	}
	if _, err := p.RegisterRegions(ctx, st, []string{"France"}); !errors.Is(err, ErrContinentsNotExtracted) {
		t.Errorf("RegisterRegions before extract err = %v", err)
	}
	if _, err := p.MaterializeCountries(ctx, st); !errors.Is(err, ErrContinentsNotRegistered) {
		t.Errorf("MaterializeCountries err = %v", err)
	}

	p.ExtractContinents(st, nil)
	if _, err := p.RegisterRegions(ctx, st, []string{"France"}); !errors.Is(err, ErrContinentsNotRegistered) {
		t.Errorf("RegisterRegions before register err = %v", err)
	}

	if _, err := p.LoadFacts(ctx, st, normalize.PandemicSARS, nil); !errors.Is(err, ErrPandemicsNotRegistered) {
		t.Errorf("LoadFacts before pandemics err = %v", err)
	}
	p.RegisterPandemics(ctx, st)
	if _, err := p.LoadFacts(ctx, st, normalize.PandemicSARS, nil); !errors.Is(err, ErrRegionsNotRegistered) {
		t.Errorf("LoadFacts before regions err = %v", err)
	}

	p.RegisterContinents(ctx, st)
	p.RegisterRegions(ctx, st, nil)
	if _, err := p.LoadFacts(ctx, st, "MERS", nil); !errors.Is(err, ErrUnknownPandemic) {
		t.Errorf("LoadFacts unknown pandemic err = %v", err)
	}
}

func TestContinentPolicy(t *testing.T) {
	summary := []source.CovidSummaryRow{
		{Country: "France", Continent: "Europe"},
		{Country: "Atlantis", Continent: "Atlantic Ocean"},
	}
	tests := []struct {
		policy        ContinentPolicy
		wantAtlantic  bool
		wantContinent int64
	}{
		{ContinentAccept, true, 2},
		{ContinentWarn, true, 2},
		{ContinentReject, false, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			db := tempStore(t)
			p := newPipeline(db, WithContinentPolicy(tt.policy))
			st := prepared(t, p, summary, "France", "Atlantis")

			if n, _ := db.Continents().Count(); n != tt.wantContinent {
				t.Errorf("continents = %d, want %d", n, tt.wantContinent)
			}
			atl := st.Regions["Atlantis"]
			if got := atl.ContinentID != nil; got != tt.wantAtlantic {
				t.Errorf("Atlantis has continent = %v, want %v", got, tt.wantAtlantic)
			}
		})
	}
}

func TestParseContinentPolicy(t *testing.T) {
	for in, want := range map[string]ContinentPolicy{"": ContinentWarn, "Reject": ContinentReject, " accept ": ContinentAccept} {
		got, err := ParseContinentPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseContinentPolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseContinentPolicy("ignore"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestExtractContinents_LastWriteWins(t *testing.T) {
	p := New(Repositories{}, WithLogger(quietLogger()))
	st := NewState()
	n := p.ExtractContinents(st, []source.CovidSummaryRow{
		{Country: "UK", Continent: "Asia"},
		{Country: "United Kingdom", Continent: " Europe "},
		{Country: "", Continent: "Africa"},
		{Country: "Diamond Princess", Continent: ""},
	})
	if n != 1 {
		t.Errorf("mapped = %d, want 1", n)
	}
	if got := st.CountryContinent["United Kingdom"]; got != "Europe" {
		t.Errorf("United Kingdom -> %q, want Europe", got)
	}
}

func TestWithNormalizer(t *testing.T) {
	n, err := normalize.NewNormalizer(normalize.Aliases{"Mainland China": "China"})
	if err != nil {
		t.Fatal(err)
	}
	db := tempStore(t)
	p := newPipeline(db, WithNormalizer(n))
	_, err = p.Run(context.Background(), Inputs{
		Sars:       []source.SarsRow{{Date: date("2003-03-17"), Country: "Mainland China", TotalCases: 1}},
		CovidDaily: []source.CovidDailyRow{{Date: date("2020-01-22"), Country: "China", CumulativeTotalCases: f64(548)}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n, _ := db.Regions().Count(); n != 1 {
		t.Errorf("regions = %d, want 1", n)
	}
}

func TestObservations(t *testing.T) {
	sars := SarsObservations([]source.SarsRow{{Date: date("2003-03-17"), Country: "US", TotalCases: 3, Deaths: 1, Recovered: 2}})
	if sars[0].Cases != 3 || sars[0].Deaths != 1 || sars[0].Recovered != 2 {
		t.Errorf("sars = %+v", sars[0])
	}

	daily := CovidDailyObservations([]source.CovidDailyRow{{
		Date:                  date("2020-03-01"),
		Country:               "Italy",
		CumulativeTotalCases:  f64(1694.9),
		CumulativeTotalDeaths: nil,
		ActiveCases:           f64(1000.2),
	}})
	if d := daily[0]; d.Cases != 1694 || d.Deaths != 0 || d.Recovered != 1000 {
		t.Errorf("daily = %+v", d)
	}

	huge := CovidDailyObservations([]source.CovidDailyRow{{
		Date:                  date("2020-03-01"),
		Country:               "Italy",
		CumulativeTotalCases:  f64(1e20),
		CumulativeTotalDeaths: f64(-4),
		ActiveCases:           f64(9.3e18),
	}})
	if d := huge[0]; d.Cases != math.MaxInt64 || d.Recovered != math.MaxInt64 || d.Deaths != 0 {
		t.Errorf("out of range counts must clamp to [0, MaxInt64], got %+v", d)
	}
}
