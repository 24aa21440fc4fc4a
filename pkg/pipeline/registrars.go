package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/hazyhaar/pandemic-registry/pkg/normalize"
	"github.com/hazyhaar/pandemic-registry/pkg/source"
	"github.com/hazyhaar/pandemic-registry/pkg/store"
)

// RegisterPandemics find-or-creates SARS and COVID and returns how many were
// created.
func (p *Pipeline) RegisterPandemics(ctx context.Context, st *State) (int, error) {
	created := 0
	for _, name := range normalize.Pandemics() {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		pd, err := p.repos.Pandemics.FindByName(name)
		if err != nil {
			return created, fmt.Errorf("register pandemic %s: %w", name, err)
		}
		if pd == nil {
			pd = &store.Pandemic{Name: name}
			if err := p.repos.Pandemics.Save(pd); err != nil {
				return created, fmt.Errorf("register pandemic %s: %w", name, err)
			}
			created++
		}
		st.Pandemics[name] = pd
	}
	st.pandemicsRegistered = true

	p.logger.Info("pandemics registered", "pandemics", len(st.Pandemics), "created", created)
	return created, nil
}

// RegionResult counts what RegisterRegions did.
type RegionResult struct {
	Created    int `json:"created"`
	Backfilled int `json:"backfilled"`
	Existing   int `json:"existing"`
}

// RegisterRegions find-or-creates one region per normalized country name and
// attaches its continent when known. A stored region without continent gets
// one once it can be resolved; a continent already set is never changed.
func (p *Pipeline) RegisterRegions(ctx context.Context, st *State, countries []string) (RegionResult, error) {
	var res RegionResult
	if !st.continentsExtracted {
		return res, fmt.Errorf("register regions: %w", ErrContinentsNotExtracted)
	}
	if !st.continentsRegistered {
		return res, fmt.Errorf("register regions: %w", ErrContinentsNotRegistered)
	}

	for _, raw := range countries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name, ok := p.country(raw)
		if !ok {
			continue
		}
		if _, seen := st.Regions[name]; seen {
			continue
		}

		continent := st.continentOf(name)
		r, err := p.repos.Regions.FindByName(name)
		if err != nil {
			return res, fmt.Errorf("register region %q: %w", name, err)
		}
		switch {
		case r == nil:
			r = &store.Region{Name: name}
			if continent != nil {
				r.ContinentID = &continent.ID
			}
			if err := p.repos.Regions.Save(r); err != nil {
				return res, fmt.Errorf("register region %q: %w", name, err)
			}
			res.Created++
		case r.ContinentID == nil && continent != nil:
			r.ContinentID = &continent.ID
			if err := p.repos.Regions.Save(r); err != nil {
				return res, fmt.Errorf("backfill region %q: %w", name, err)
			}
			res.Backfilled++
		default:
			res.Existing++
		}
		st.Regions[name] = r
	}
	st.regionsRegistered = true

	p.logger.Info("regions registered",
		"regions", len(st.Regions),
		"created", res.Created,
		"backfilled", res.Backfilled,
	)
	return res, nil
}

// CountryResult counts what MaterializeCountries did.
type CountryResult struct {
	Created    int `json:"created"`
	Backfilled int `json:"backfilled"`
	Existing   int `json:"existing"`
}

// MaterializeCountries find-or-creates a country for every entry of
// st.CountryContinent and backfills its continent when unset.
func (p *Pipeline) MaterializeCountries(ctx context.Context, st *State) (CountryResult, error) {
	var res CountryResult
	if !st.continentsRegistered {
		return res, fmt.Errorf("materialize countries: %w", ErrContinentsNotRegistered)
	}

	names := make([]string, 0, len(st.CountryContinent))
	for name := range st.CountryContinent {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		continent := st.continentOf(name)

		c, err := p.repos.Countries.FindByName(name)
		if err != nil {
			return res, fmt.Errorf("materialize country %q: %w", name, err)
		}
		switch {
		case c == nil:
			c = &store.Country{Name: name}
			if continent != nil {
				c.ContinentID = &continent.ID
			}
			if err := p.repos.Countries.Save(c); err != nil {
				return res, fmt.Errorf("materialize country %q: %w", name, err)
			}
			res.Created++
		case c.ContinentID == nil && continent != nil:
			c.ContinentID = &continent.ID
			if err := p.repos.Countries.Save(c); err != nil {
				return res, fmt.Errorf("backfill country %q: %w", name, err)
			}
			res.Backfilled++
		default:
			res.Existing++
		}
		st.Countries[name] = c
	}

	p.logger.Info("countries materialized", "countries", len(st.Countries), "created", res.Created, "backfilled", res.Backfilled)
	return res, nil
}

// CountryNames lists the raw country of every row of the three sources, SARS
// first. Duplicates are kept; RegisterRegions collapses them.
func CountryNames(sars []source.SarsRow, summary []source.CovidSummaryRow, daily []source.CovidDailyRow) []string {
	names := make([]string, 0, len(sars)+len(summary)+len(daily))
	for _, r := range sars {
		names = append(names, r.Country)
	}
	for _, r := range summary {
		names = append(names, r.Country)
	}
	for _, r := range daily {
		names = append(names, r.Country)
	}
	return names
}
