package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/pandemic-registry/pkg/normalize"
	"github.com/hazyhaar/pandemic-registry/pkg/source"
	"github.com/hazyhaar/pandemic-registry/pkg/store"
)

// ExtractContinents fills st.CountryContinent from the summary rows. A country
// listed twice keeps its last continent. Rows with a blank country or
// continent are ignored. It returns the number of mapped countries.
func (p *Pipeline) ExtractContinents(st *State, rows []source.CovidSummaryRow) int {
	for _, row := range rows {
		country, ok := p.country(row.Country)
		if !ok {
			continue
		}
		continent := strings.TrimSpace(row.Continent)
		if continent == "" {
			continue
		}
		st.CountryContinent[country] = continent
	}
	st.continentsExtracted = true

	p.logger.Info("continents extracted", "countries", len(st.CountryContinent))
	return len(st.CountryContinent)
}

// RegisterContinents find-or-creates one continent per distinct name in
// st.CountryContinent and returns how many were created.
func (p *Pipeline) RegisterContinents(ctx context.Context, st *State) (int, error) {
	if !st.continentsExtracted {
		return 0, fmt.Errorf("register continents: %w", ErrContinentsNotExtracted)
	}

	distinct := make(map[string]bool)
	for _, name := range st.CountryContinent {
		distinct[name] = true
	}
	names := make([]string, 0, len(distinct))
	for name := range distinct {
		names = append(names, name)
	}
	sort.Strings(names)

	created := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		if !normalize.IsValidContinent(name) {
			switch p.policy {
			case ContinentReject:
				p.logger.Warn("continent rejected", "continent", name)
				continue
			case ContinentWarn:
				p.logger.Warn("continent not in allow-list, accepting", "continent", name)
			}
		}

		c, err := p.repos.Continents.FindByName(name)
		if err != nil {
			return created, fmt.Errorf("register continent %q: %w", name, err)
		}
		if c == nil {
			c = &store.Continent{Name: name}
			if err := p.repos.Continents.Save(c); err != nil {
				return created, fmt.Errorf("register continent %q: %w", name, err)
			}
			created++
		}
		st.Continents[name] = c
	}
	st.continentsRegistered = true

	p.logger.Info("continents registered", "continents", len(st.Continents), "created", created)
	return created, nil
}
