// CLAUDE:SUMMARY Batch loader: extracts continents, find-or-creates continents/pandemics/regions, upserts daily facts and materializes countries, in that order.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/pandemic-registry/pkg/normalize"
	"github.com/hazyhaar/pandemic-registry/pkg/store"
)

// Stage precondition errors. Stages return them wrapped.
var (
	ErrContinentsNotExtracted  = errors.New("continents not extracted")
	ErrContinentsNotRegistered = errors.New("continents not registered")
	ErrPandemicsNotRegistered  = errors.New("pandemics not registered")
	ErrRegionsNotRegistered    = errors.New("regions not registered")
	ErrUnknownPandemic         = errors.New("unknown pandemic")
)

type ContinentStore interface {
	FindByName(name string) (*store.Continent, error)
	Save(c *store.Continent) error
}

type PandemicStore interface {
	FindByName(name string) (*store.Pandemic, error)
	Save(p *store.Pandemic) error
}

type RegionStore interface {
	FindByName(name string) (*store.Region, error)
	Save(r *store.Region) error
}

type CountryStore interface {
	FindByName(name string) (*store.Country, error)
	Save(c *store.Country) error
}

type FactStore interface {
	Upsert(f store.TotalByDay) error
}

// RunRecorder persists the start and outcome of each Run.
type RunRecorder interface {
	Start() (string, error)
	Finish(id string, report any, runErr error) error
}

// Repositories groups the storage the pipeline writes to.
type Repositories struct {
	Continents ContinentStore
	Pandemics  PandemicStore
	Regions    RegionStore
	Countries  CountryStore
	Facts      FactStore
}

// StoreRepositories wires every repository of db.
func StoreRepositories(db *store.DB) Repositories {
	return Repositories{
		Continents: db.Continents(),
		Pandemics:  db.Pandemics(),
		Regions:    db.Regions(),
		Countries:  db.Countries(),
		Facts:      db.Facts(),
	}
}

// ContinentPolicy decides what happens to continent names outside the
// seven-name allow-list.
type ContinentPolicy string

const (
	ContinentAccept ContinentPolicy = "accept"
	ContinentWarn   ContinentPolicy = "warn"
	ContinentReject ContinentPolicy = "reject"
)

// ParseContinentPolicy maps a config value onto a policy; "" means warn.
func ParseContinentPolicy(s string) (ContinentPolicy, error) {
	switch p := ContinentPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ContinentWarn, nil
	case ContinentAccept, ContinentWarn, ContinentReject:
		return p, nil
	}
	return "", fmt.Errorf("unknown continent policy %q", s)
}

// Pipeline runs the load stages against a set of repositories. It holds no
// per-run state; that lives in State.
type Pipeline struct {
	repos      Repositories
	logger     *slog.Logger
	policy     ContinentPolicy
	normalizer *normalize.Normalizer
	recorder   RunRecorder
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithContinentPolicy(policy ContinentPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithNormalizer replaces the default country alias table.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.normalizer = n
		}
	}
}

// WithRunRecorder records every Run, e.g. in store.Runs.
func WithRunRecorder(r RunRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func New(repos Repositories, opts ...Option) *Pipeline {
	p := &Pipeline{
		repos:      repos,
		logger:     slog.Default(),
		policy:     ContinentWarn,
		normalizer: normalize.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) country(raw string) (string, bool) {
	return p.normalizer.Country(raw)
}
