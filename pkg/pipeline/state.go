package pipeline

import "github.com/hazyhaar/pandemic-registry/pkg/store"

// State carries the identity maps of one run from stage to stage. Keys are
// normalized country names and exact continent/pandemic names.
type State struct {
	CountryContinent map[string]string
	Continents       map[string]*store.Continent
	Pandemics        map[string]*store.Pandemic
	Regions          map[string]*store.Region
	Countries        map[string]*store.Country

	continentsExtracted  bool
	continentsRegistered bool
	pandemicsRegistered  bool
	regionsRegistered    bool
}

func NewState() *State {
	return &State{
		CountryContinent: make(map[string]string),
		Continents:       make(map[string]*store.Continent),
		Pandemics:        make(map[string]*store.Pandemic),
		Regions:          make(map[string]*store.Region),
		Countries:        make(map[string]*store.Country),
	}
}

// continentOf resolves the registered continent of a normalized country.
func (s *State) continentOf(country string) *store.Continent {
	name, ok := s.CountryContinent[country]
	if !ok {
		return nil
	}
	return s.Continents[name]
}
