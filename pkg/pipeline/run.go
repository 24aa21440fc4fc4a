package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/pandemic-registry/pkg/normalize"
	"github.com/hazyhaar/pandemic-registry/pkg/source"
)

// Inputs are the parsed sources of one run. A nil slice means the source
// could not be read.
type Inputs struct {
	Sars         []source.SarsRow
	CovidSummary []source.CovidSummaryRow
	CovidDaily   []source.CovidDailyRow
}

// Report summarizes a Run.
type Report struct {
	RunID             string        `json:"run_id,omitempty"`
	CountryContinents int           `json:"country_continents"`
	Continents        int           `json:"continents"`
	ContinentsCreated int           `json:"continents_created"`
	PandemicsCreated  int           `json:"pandemics_created"`
	Regions           RegionResult  `json:"regions"`
	Sars              LoadResult    `json:"sars"`
	CovidDaily        LoadResult    `json:"covid_daily"`
	Countries         CountryResult `json:"countries"`
	Skipped           []string      `json:"skipped,omitempty"`
	Duration          time.Duration `json:"duration_ns"`
	FactsFailed       int           `json:"facts_failed"`
	FactsWritten      int           `json:"facts_written"`
}

// Run performs every stage in order on a fresh State. Empty inputs skip only
// the work that needs them. A storage error in a registrar stops the run.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (rep *Report, err error) {
	start := time.Now()
	rep = &Report{}

	if p.recorder != nil {
		id, rerr := p.recorder.Start()
		if rerr != nil {
			p.logger.Warn("run not recorded", "error", rerr)
		} else {
			rep.RunID = id
			defer func() {
				if ferr := p.recorder.Finish(id, rep, err); ferr != nil {
					p.logger.Warn("run outcome not recorded", "run", id, "error", ferr)
				}
			}()
		}
	}
	defer func() {
		rep.Duration = time.Since(start)
		rep.FactsWritten = rep.Sars.Success + rep.CovidDaily.Success
		rep.FactsFailed = rep.Sars.Failed() + rep.CovidDaily.Failed()
	}()

	st := NewState()

	if len(in.CovidSummary) == 0 {
		p.logger.Warn("no COVID summary rows: regions and countries get no continent")
		rep.Skipped = append(rep.Skipped, "continents")
	}
	rep.CountryContinents = p.ExtractContinents(st, in.CovidSummary)

	if rep.ContinentsCreated, err = p.RegisterContinents(ctx, st); err != nil {
		return rep, fmt.Errorf("run: %w", err)
	}
	rep.Continents = len(st.Continents)

	if rep.PandemicsCreated, err = p.RegisterPandemics(ctx, st); err != nil {
		return rep, fmt.Errorf("run: %w", err)
	}

	names := CountryNames(in.Sars, in.CovidSummary, in.CovidDaily)
	if rep.Regions, err = p.RegisterRegions(ctx, st, names); err != nil {
		return rep, fmt.Errorf("run: %w", err)
	}

	if len(in.Sars) == 0 {
		p.logger.Warn("no SARS rows: skipping SARS facts")
		rep.Skipped = append(rep.Skipped, "sars")
	} else if rep.Sars, err = p.LoadFacts(ctx, st, normalize.PandemicSARS, SarsObservations(in.Sars)); err != nil {
		return rep, fmt.Errorf("run: %w", err)
	}

	if len(in.CovidDaily) == 0 {
		p.logger.Warn("no COVID daily rows: skipping COVID facts")
		rep.Skipped = append(rep.Skipped, "covid-daily")
	} else if rep.CovidDaily, err = p.LoadFacts(ctx, st, normalize.PandemicCOVID, CovidDailyObservations(in.CovidDaily)); err != nil {
		return rep, fmt.Errorf("run: %w", err)
	}

	if rep.Countries, err = p.MaterializeCountries(ctx, st); err != nil {
		return rep, fmt.Errorf("run: %w", err)
	}

	p.logger.Info("load complete",
		"regions", len(st.Regions),
		"continents", rep.Continents,
		"success", rep.Sars.Success+rep.CovidDaily.Success,
		"failed", rep.Sars.Failed()+rep.CovidDaily.Failed(),
	)
	return rep, nil
}
