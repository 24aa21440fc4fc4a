// CLAUDE:SUMMARY Read-side aggregations over the fact table: per-pandemic totals, timelines, cross-pandemic and per-continent comparisons, predictions.
package stats

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/pandemic-registry/pkg/normalize"
	"github.com/hazyhaar/pandemic-registry/pkg/store"
)

// ErrNotFound is returned for an unknown pandemic, region or continent ID.
var ErrNotFound = errors.New("not found")

// DefaultFactLimit caps Facts when no limit is given.
const DefaultFactLimit = 100

type Service struct {
	db *store.DB
}

func NewService(db *store.DB) *Service {
	return &Service{db: db}
}

func mortality(cases, deaths int64) float64 {
	if cases <= 0 {
		return 0
	}
	return float64(deaths) * 100 / float64(cases)
}

func point(f store.TotalByDay) DayPoint {
	return DayPoint{Date: f.Date, Cases: f.CaseCount, Deaths: f.Death, Recovered: f.Recovered}
}

func (s *Service) pandemic(id int64) (*store.Pandemic, error) {
	p, err := s.db.Pandemics().FindByID(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("pandemic %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *Service) region(id int64) (*store.Region, error) {
	r, err := s.db.Regions().FindByID(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("region %d: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *Service) continent(id int64) (*store.Continent, error) {
	c, err := s.db.Continents().FindByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("continent %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *Service) ListPandemics() ([]store.Pandemic, error) { return s.db.Pandemics().FindAll() }

func (s *Service) ListContinents() ([]store.Continent, error) { return s.db.Continents().FindAll() }

// Pandemics returns the summed totals of every pandemic.
func (s *Service) Pandemics() ([]PandemicSummary, error) {
	pandemics, err := s.db.Pandemics().FindAll()
	if err != nil {
		return nil, err
	}
	facts := s.db.Facts()
	out := make([]PandemicSummary, 0, len(pandemics))
	for _, p := range pandemics {
		cases, err := facts.SumCasesByPandemic(p.ID)
		if err != nil {
			return nil, err
		}
		deaths, err := facts.SumDeathsByPandemic(p.ID)
		if err != nil {
			return nil, err
		}
		regions, err := facts.CountDistinctRegionsByPandemic(p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, PandemicSummary{
			ID:              p.ID,
			Name:            p.Name,
			TotalCases:      cases,
			TotalDeaths:     deaths,
			MortalityRate:   mortality(cases, deaths),
			AffectedRegions: regions,
		})
	}
	return out, nil
}

// ByPandemic returns the latest row of every region with data for pandemicID.
func (s *Service) ByPandemic(pandemicID int64) ([]RegionLatest, error) {
	if _, err := s.pandemic(pandemicID); err != nil {
		return nil, err
	}
	latest, err := s.db.Facts().LatestPerRegion(pandemicID)
	if err != nil {
		return nil, err
	}
	names, err := s.regionNames()
	if err != nil {
		return nil, err
	}
	out := make([]RegionLatest, 0, len(latest))
	for _, f := range latest {
		out = append(out, RegionLatest{Region: names[f.RegionID], RegionID: f.RegionID, DayPoint: point(f)})
	}
	return out, nil
}

// ByRegion returns the latest row of every pandemic with data for regionID.
func (s *Service) ByRegion(regionID int64) ([]PandemicLatest, error) {
	if _, err := s.region(regionID); err != nil {
		return nil, err
	}
	pandemics, err := s.db.Pandemics().FindAll()
	if err != nil {
		return nil, err
	}
	var out []PandemicLatest
	for _, p := range pandemics {
		f, err := s.db.Facts().FindLatestByPandemicAndRegion(p.ID, regionID)
		if err != nil {
			return nil, err
		}
		if f != nil {
			out = append(out, PandemicLatest{Pandemic: p.Name, PandemicID: p.ID, DayPoint: point(*f)})
		}
	}
	return out, nil
}

// Timeline returns every day of one region under one pandemic, oldest first.
func (s *Service) Timeline(pandemicID, regionID int64) ([]DayPoint, error) {
	if _, err := s.region(regionID); err != nil {
		return nil, err
	}
	if _, err := s.pandemic(pandemicID); err != nil {
		return nil, err
	}
	facts, err := s.db.Facts().FindByPandemicAndRegion(pandemicID, regionID)
	if err != nil {
		return nil, err
	}
	out := make([]DayPoint, len(facts))
	for i, f := range facts {
		out[i] = point(f)
	}
	return out, nil
}

// Compare puts the peak day of two pandemics in one region side by side.
func (s *Service) Compare(pandemic1, pandemic2, regionID int64) (*Comparison, error) {
	r, err := s.region(regionID)
	if err != nil {
		return nil, err
	}
	p1, err := s.pandemic(pandemic1)
	if err != nil {
		return nil, err
	}
	p2, err := s.pandemic(pandemic2)
	if err != nil {
		return nil, err
	}

	out := &Comparison{Region: r.Name, Pandemic1: p1.Name, Pandemic2: p2.Name}
	if out.Max1, err = s.peak(p1.ID, r.ID); err != nil {
		return nil, err
	}
	if out.Max2, err = s.peak(p2.ID, r.ID); err != nil {
		return nil, err
	}

	if out.Max1 != nil && out.Max2 != nil {
		m1, m2 := out.Max1, out.Max2
		metrics := &ComparisonMetrics{
			MortalityRate1: mortality(m1.Cases, m1.Deaths),
			MortalityRate2: mortality(m2.Cases, m2.Deaths),
		}
		if m2.Cases > 0 {
			metrics.CaseRatio = float64(m1.Cases) / float64(m2.Cases)
		}
		if m2.Deaths > 0 {
			metrics.DeathRatio = float64(m1.Deaths) / float64(m2.Deaths)
		}
		out.Metrics = metrics
	}
	return out, nil
}

// peak returns the first day with the highest case count, or nil without data.
func (s *Service) peak(pandemicID, regionID int64) (*DayPoint, error) {
	facts, err := s.db.Facts().FindByPandemicAndRegion(pandemicID, regionID)
	if err != nil || len(facts) == 0 {
		return nil, err
	}
	best := facts[0]
	for _, f := range facts[1:] {
		if f.CaseCount > best.CaseCount {
			best = f
		}
	}
	p := point(best)
	return &p, nil
}

// ContinentsComparison returns ByContinent for every continent.
func (s *Service) ContinentsComparison() ([]ContinentStats, error) {
	continents, err := s.db.Continents().FindAll()
	if err != nil {
		return nil, err
	}
	latest, err := s.latestByName()
	if err != nil {
		return nil, err
	}
	out := make([]ContinentStats, 0, len(continents))
	for _, c := range continents {
		cs, err := s.continentStats(c, latest)
		if err != nil {
			return nil, err
		}
		out = append(out, *cs)
	}
	return out, nil
}

// ByContinent sums the latest COVID and SARS rows of the continent's regions
// and lists each region that has data for at least one of them.
func (s *Service) ByContinent(continentID int64) (*ContinentStats, error) {
	c, err := s.continent(continentID)
	if err != nil {
		return nil, err
	}
	latest, err := s.latestByName()
	if err != nil {
		return nil, err
	}
	return s.continentStats(*c, latest)
}

// latestByName maps pandemic name to region ID to latest row, for COVID and
// SARS. A pandemic not registered yet maps to an empty set.
func (s *Service) latestByName() (map[string]map[int64]store.TotalByDay, error) {
	out := make(map[string]map[int64]store.TotalByDay, 2)
	for _, name := range []string{normalize.PandemicCOVID, normalize.PandemicSARS} {
		out[name] = map[int64]store.TotalByDay{}
		p, err := s.db.Pandemics().FindByName(name)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		rows, err := s.db.Facts().LatestPerRegion(p.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range rows {
			out[name][f.RegionID] = f
		}
	}
	return out, nil
}

func (s *Service) continentStats(c store.Continent, latest map[string]map[int64]store.TotalByDay) (*ContinentStats, error) {
	regions, err := s.db.Regions().FindByContinent(c.ID)
	if err != nil {
		return nil, err
	}
	out := &ContinentStats{ContinentID: c.ID, ContinentName: c.Name, Regions: []RegionSnapshot{}}
	if len(regions) == 0 {
		return out, nil
	}

	covid, sars := latest[normalize.PandemicCOVID], latest[normalize.PandemicSARS]
	out.Covid = totals(regions, covid)
	out.Sars = totals(regions, sars)
	out.Comparison = ratio(out.Covid, out.Sars)

	for _, r := range regions {
		snap := RegionSnapshot{RegionID: r.ID, RegionName: r.Name}
		if f, ok := covid[r.ID]; ok {
			p := point(f)
			snap.Covid = &p
		}
		if f, ok := sars[r.ID]; ok {
			p := point(f)
			snap.Sars = &p
		}
		if snap.Covid != nil || snap.Sars != nil {
			out.Regions = append(out.Regions, snap)
		}
	}
	return out, nil
}

func totals(regions []store.Region, latest map[int64]store.TotalByDay) Totals {
	var t Totals
	for _, r := range regions {
		f, ok := latest[r.ID]
		if !ok {
			continue
		}
		t.TotalCases += f.CaseCount
		t.TotalDeaths += f.Death
		t.TotalRecovered += f.Recovered
		t.AffectedRegions++
	}
	t.MortalityRate = mortality(t.TotalCases, t.TotalDeaths)
	return t
}

func ratio(covid, sars Totals) *PandemicRatio {
	r := &PandemicRatio{MortalityRateDifference: sars.MortalityRate - covid.MortalityRate}
	if covid.TotalCases > 0 && sars.TotalCases > 0 {
		v := float64(covid.TotalCases) / float64(sars.TotalCases)
		r.CasesRatio = &v
	}
	if covid.TotalDeaths > 0 && sars.TotalDeaths > 0 {
		v := float64(covid.TotalDeaths) / float64(sars.TotalDeaths)
		r.DeathsRatio = &v
	}
	return r
}

// PandemicByContinent sums every row of pandemicID per continent.
func (s *Service) PandemicByContinent(pandemicID int64) (*PandemicContinents, error) {
	p, err := s.pandemic(pandemicID)
	if err != nil {
		return nil, err
	}
	continents, err := s.db.Continents().FindAll()
	if err != nil {
		return nil, err
	}
	out := &PandemicContinents{Pandemic: p.Name, ContinentStats: make([]ContinentSum, 0, len(continents))}
	facts := s.db.Facts()
	for _, c := range continents {
		cases, err := facts.SumCasesByPandemicAndContinent(p.ID, c.ID)
		if err != nil {
			return nil, err
		}
		deaths, err := facts.SumDeathsByPandemicAndContinent(p.ID, c.ID)
		if err != nil {
			return nil, err
		}
		out.ContinentStats = append(out.ContinentStats, ContinentSum{
			Continent:     c.Name,
			TotalCases:    cases,
			TotalDeaths:   deaths,
			MortalityRate: mortality(cases, deaths),
		})
	}
	return out, nil
}

// Regions lists every region with its continent and how many rows it has.
func (s *Service) Regions() ([]RegionInfo, error) {
	regions, err := s.db.Regions().FindAll()
	if err != nil {
		return nil, err
	}
	continents, err := s.db.Continents().FindAll()
	if err != nil {
		return nil, err
	}
	cname := make(map[int64]string, len(continents))
	for _, c := range continents {
		cname[c.ID] = c.Name
	}

	out := make([]RegionInfo, 0, len(regions))
	for _, r := range regions {
		n, err := s.db.Facts().CountByRegion(r.ID)
		if err != nil {
			return nil, err
		}
		info := RegionInfo{ID: r.ID, Name: r.Name, ContinentID: r.ContinentID, HasData: n > 0, DataCount: n}
		if r.ContinentID != nil {
			info.ContinentName = cname[*r.ContinentID]
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *Service) AllPredictions() ([]store.Prediction, error) { return s.db.Predictions().FindAll() }

// Predictions returns one 0-based page of predictions.
func (s *Service) Predictions(page, size int) (*PredictionPage, error) {
	repo := s.db.Predictions()
	rows, err := repo.Page(page, size)
	if err != nil {
		return nil, err
	}
	total, err := repo.Count()
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []store.Prediction{}
	}
	return &PredictionPage{
		Predictions: rows,
		CurrentPage: page,
		TotalItems:  total,
		TotalPages:  int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// Facts returns up to limit raw rows with their pandemic and region names.
func (s *Service) Facts(limit int) ([]FactRow, error) {
	if limit <= 0 {
		limit = DefaultFactLimit
	}
	rows, err := s.db.Facts().List(limit)
	if err != nil {
		return nil, err
	}
	regions, err := s.regionNames()
	if err != nil {
		return nil, err
	}
	pandemics, err := s.db.Pandemics().FindAll()
	if err != nil {
		return nil, err
	}
	pname := make(map[int64]string, len(pandemics))
	for _, p := range pandemics {
		pname[p.ID] = p.Name
	}

	out := make([]FactRow, len(rows))
	for i, f := range rows {
		out[i] = FactRow{
			PandemicID:   f.PandemicID,
			PandemicName: pname[f.PandemicID],
			RegionID:     f.RegionID,
			RegionName:   regions[f.RegionID],
			DayPoint:     point(f),
		}
	}
	return out, nil
}

func (s *Service) Diagnostic() (*Diagnostic, error) {
	pandemics, err := s.db.Pandemics().FindAll()
	if err != nil {
		return nil, err
	}
	regions, err := s.db.Regions().Count()
	if err != nil {
		return nil, err
	}
	records, err := s.db.Facts().Count()
	if err != nil {
		return nil, err
	}
	run, err := s.db.Runs().Latest()
	if err != nil {
		return nil, err
	}
	return &Diagnostic{Pandemics: pandemics, Regions: regions, TotalRecords: records, LastRun: run}, nil
}

func (s *Service) regionNames() (map[int64]string, error) {
	regions, err := s.db.Regions().FindAll()
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(regions))
	for _, r := range regions {
		names[r.ID] = r.Name
	}
	return names, nil
}
