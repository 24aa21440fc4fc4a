package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hazyhaar/pandemic-registry/pkg/source"
	"github.com/hazyhaar/pandemic-registry/pkg/store"
)

// Observation is one source row reduced to the fact shape.
type Observation struct {
	Country   string
	Date      time.Time
	Cases     int64
	Deaths    int64
	Recovered int64
}

// LoadResult counts fact rows by outcome.
type LoadResult struct {
	Success    int `json:"success"`
	Invalid    int `json:"invalid"`
	Unresolved int `json:"unresolved"`
	Rejected   int `json:"rejected"`
}

// Failed is the number of rows that were not written.
func (r LoadResult) Failed() int { return r.Invalid + r.Unresolved + r.Rejected }

func SarsObservations(rows []source.SarsRow) []Observation {
	obs := make([]Observation, len(rows))
	for i, r := range rows {
		obs[i] = Observation{
			Country:   r.Country,
			Date:      r.Date,
			Cases:     int64(r.TotalCases),
			Deaths:    int64(r.Deaths),
			Recovered: int64(r.Recovered),
		}
	}
	return obs
}

// CovidDailyObservations truncates the cumulative counts. Missing values load
// as 0 and the active-case count stands in for recovered.
func CovidDailyObservations(rows []source.CovidDailyRow) []Observation {
	obs := make([]Observation, len(rows))
	for i, r := range rows {
		obs[i] = Observation{
			Country:   r.Country,
			Date:      r.Date,
			Cases:     truncate(r.CumulativeTotalCases),
			Deaths:    truncate(r.CumulativeTotalDeaths),
			Recovered: truncate(r.ActiveCases),
		}
	}
	return obs
}

// truncate drops the fraction of f, clamped to [0, MaxInt64]. nil is 0.
func truncate(f *float64) int64 {
	switch {
	case f == nil || *f < 0:
		return 0
	case *f >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(*f)
}

// LoadFacts upserts one fact per observation under pandemic. Observations are
// written in stable date order so the last row of a duplicated key wins. A row
// that cannot be written is counted and logged; only cancellation or a missing
// precondition returns an error.
func (p *Pipeline) LoadFacts(ctx context.Context, st *State, pandemic string, obs []Observation) (LoadResult, error) {
	var res LoadResult
	if !st.pandemicsRegistered {
		return res, fmt.Errorf("load %s facts: %w", pandemic, ErrPandemicsNotRegistered)
	}
	if !st.regionsRegistered {
		return res, fmt.Errorf("load %s facts: %w", pandemic, ErrRegionsNotRegistered)
	}
	pd, ok := st.Pandemics[pandemic]
	if !ok {
		return res, fmt.Errorf("load %s facts: %w", pandemic, ErrUnknownPandemic)
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for _, o := range sorted {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		country, ok := p.country(o.Country)
		if !ok || o.Date.IsZero() {
			res.Invalid++
			continue
		}
		region, ok := st.Regions[country]
		if !ok {
			res.Unresolved++
			p.logger.Warn("fact skipped: unknown region",
				"pandemic", pandemic, "country", country, "date", o.Date.Format(time.DateOnly))
			continue
		}

		f := store.TotalByDay{
			PandemicID: pd.ID,
			RegionID:   region.ID,
			Date:       store.DateOf(o.Date),
			CaseCount:  o.Cases,
			Death:      o.Deaths,
			Recovered:  o.Recovered,
		}
		if err := p.repos.Facts.Upsert(f); err != nil {
			res.Rejected++
			p.logger.Warn("fact rejected",
				"pandemic", pandemic, "country", country, "date", o.Date.Format(time.DateOnly), "error", err)
			continue
		}
		res.Success++
	}

	p.logger.Info("facts loaded", "pandemic", pandemic, "success", res.Success, "failed", res.Failed())
	return res, nil
}
