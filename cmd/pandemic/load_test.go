package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/hazyhaar/pandemic-registry/pkg/source"
	"github.com/hazyhaar/pandemic-registry/pkg/store"
)

const (
	sarsCSV = "Date,Country,Cumulative number of case(s),Number of deaths,Number recovered\n" +
		"2003-03-17,China,100,5,0\n" +
		"2003-03-17,US,3,0,0\n"
	summaryCSV = "country,continent,total_confirmed,total_deaths,total_recovered,active_cases,serious_or_critical,total_cases_per_1m_population,total_deaths_per_1m_population,total_tests,total_tests_per_1m_population,population\n" +
		"China,Asia,81000,3300,76000,1000,10,56,2,,,1439323776\n" +
		"USA,North America,100,10,50,40,,,,,,331000000\n"
	dailyCSV = "date,country,cumulative_total_cases,daily_new_cases,active_cases,cumulative_total_deaths,daily_new_deaths\n" +
		"2020-2-15,China,66000,,50000,1500,\n"
)

func testApp(t *testing.T, sars, summary, daily string) *app {
	t.Helper()
	dir := t.TempDir()

	cfg := defaultConfig()
	cfg.Database.DSN = filepath.Join(dir, "pandemic.db")
	cfg.WorkDir = dir
	cfg.Sources.Sars.Location = filepath.Join(dir, "missing-sars.csv")
	cfg.Sources.CovidSummary.Location = filepath.Join(dir, "missing-summary.csv")
	cfg.Sources.CovidDaily.Location = filepath.Join(dir, "missing-daily.csv")
	if sars != "" {
		cfg.Sources.Sars.Location = writeFile(t, dir, "sars.csv", sars)
	}
	if summary != "" {
		cfg.Sources.CovidSummary.Location = writeFile(t, dir, "summary.csv", summary)
	}
	if daily != "" {
		cfg.Sources.CovidDaily.Location = writeFile(t, dir, "daily.csv", daily)
	}

	a, err := openApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func TestLoad(t *testing.T) {
	a := testApp(t, sarsCSV, summaryCSV, dailyCSV)

	rep, err := a.load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rep.Sars.Success != 2 || rep.CovidDaily.Success != 1 {
		t.Errorf("report = %+v", rep)
	}

	regions, _ := a.db.Regions().Count()
	facts, _ := a.db.Facts().Count()
	continents, _ := a.db.Continents().Count()
	if regions != 2 || facts != 3 || continents != 2 {
		t.Errorf("regions=%d facts=%d continents=%d, want 2 3 2", regions, facts, continents)
	}

	// A second load changes nothing.
	if _, err := a.load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	again, _ := a.db.Facts().Count()
	if again != facts {
		t.Errorf("facts after reload = %d, want %d", again, facts)
	}

	e, err := a.catalog.Get(source.SourceSars)
	if err != nil {
		t.Fatal(err)
	}
	if e.RowsValid == nil || *e.RowsValid != 2 || e.ReadError != nil {
		t.Errorf("catalog entry = %+v", e)
	}

	run, err := a.db.Runs().Latest()
	if err != nil || run == nil || run.Status != store.RunSuccess {
		t.Errorf("latest run = %+v, %v", run, err)
	}
}

func TestLoad_MissingSources(t *testing.T) {
	a := testApp(t, sarsCSV, "", "")

	rep, err := a.load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rep.Sars.Success != 2 {
		t.Errorf("SARS facts load without continents: report = %+v", rep)
	}
	if len(rep.Skipped) != 2 || rep.Skipped[0] != "continents" {
		t.Errorf("skipped = %v", rep.Skipped)
	}

	e, _ := a.catalog.Get(source.SourceCovidSummary)
	if e.ReadError == nil {
		t.Error("failed fetch should be recorded on the catalog entry")
	}
}

func TestReload_OneAtATime(t *testing.T) {
	a := testApp(t, "", "", "")
	a.loading.Lock()
	if a.reload(context.Background()) {
		t.Error("reload should be skipped while a load is running")
	}
	a.loading.Unlock()
	if !a.reload(context.Background()) {
		t.Error("reload should run once the previous load is done")
	}
}

func TestSources(t *testing.T) {
	a := testApp(t, "", "", "")
	ctx := context.Background()

	var out bytes.Buffer
	if err := a.sources(ctx, []string{"set", source.SourceSars, "https://example.org/sars.csv"}, &out); err != nil {
		t.Fatalf("set: %v", err)
	}
	out.Reset()
	if err := a.sources(ctx, nil, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "https://example.org/sars.csv") {
		t.Errorf("list = %s", out.String())
	}
	if strings.Count(out.String(), "\n") != 3 {
		t.Errorf("want 3 sources, got:\n%s", out.String())
	}

	if err := a.sources(ctx, []string{"set", "nope", "x"}, &out); err == nil {
		t.Error("unknown source should fail")
	}
	if err := a.sources(ctx, []string{"set", "sars"}, &out); err == nil {
		t.Error("missing location should fail")
	}
	if err := a.sources(ctx, []string{"frobnicate"}, &out); err == nil {
		t.Error("unknown action should fail")
	}
}

func TestSources_Check(t *testing.T) {
	a := testApp(t, sarsCSV, "", "")
	var out bytes.Buffer
	if err := a.sources(context.Background(), []string{"check"}, &out); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out.String(), "[200]") || !strings.Contains(out.String(), "[404]") {
		t.Errorf("check output = %s", out.String())
	}
}

func TestReloadOn(t *testing.T) {
	a := testApp(t, sarsCSV, summaryCSV, "")
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal)
	done := make(chan struct{})
	go func() {
		a.reloadOn(ctx, sig)
		close(done)
	}()

	// The second send is only taken once the first reload has finished.
	sig <- syscall.SIGHUP
	sig <- syscall.SIGHUP
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reloadOn did not return after cancel")
	}

	if n, _ := a.db.Facts().Count(); n != 2 {
		t.Errorf("facts = %d, want 2 after signalled reload", n)
	}
}
