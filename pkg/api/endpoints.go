// CLAUDE:SUMMARY Transport-agnostic kit.Endpoints over stats.Service, shared by the HTTP router and the MCP tools.
package api

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/pandemic-registry/pkg/kit"
	"github.com/hazyhaar/pandemic-registry/pkg/stats"
)

// Page sizes accepted by the paged predictions endpoint.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type idReq struct{ ID int64 }

type timelineReq struct {
	PandemicID int64
	RegionID   int64
}

type compareReq struct {
	Pandemic1 int64
	Pandemic2 int64
	RegionID  int64
}

type pageReq struct{ Page, Size int }

type limitReq struct{ Limit int }

type comparativeResponse struct {
	Pandemics  []stats.PandemicSummary `json:"pandemics"`
	Continents []stats.ContinentStats  `json:"continents"`
}

type healthResponse struct {
	Status       string `json:"status"`
	Pandemics    int    `json:"pandemics"`
	Regions      int64  `json:"regions"`
	TotalRecords int64  `json:"totalRecords"`
}

type endpoints struct {
	listPandemics        kit.Endpoint
	pandemics            kit.Endpoint
	byPandemic           kit.Endpoint
	byRegion             kit.Endpoint
	timeline             kit.Endpoint
	compare              kit.Endpoint
	continentsComparison kit.Endpoint
	byContinent          kit.Endpoint
	pandemicByContinent  kit.Endpoint
	comparative          kit.Endpoint
	regions              kit.Endpoint
	predictions          kit.Endpoint
	predictionsPage      kit.Endpoint
	facts                kit.Endpoint
	diagnostic           kit.Endpoint
	health               kit.Endpoint
}

func noArgs[T any](fn func() (T, error)) kit.Endpoint {
	return func(context.Context, any) (any, error) { return fn() }
}

func byID[T any](fn func(int64) (T, error)) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		return fn(request.(*idReq).ID)
	}
}

func newEndpoints(svc *stats.Service, logger *slog.Logger) *endpoints {
	l := func(name string, ep kit.Endpoint) kit.Endpoint {
		return kit.Logging(logger, name)(ep)
	}

	return &endpoints{
		listPandemics:        l("list_pandemics", noArgs(svc.ListPandemics)),
		pandemics:            l("pandemics", noArgs(svc.Pandemics)),
		byPandemic:           l("by_pandemic", byID(svc.ByPandemic)),
		byRegion:             l("by_region", byID(svc.ByRegion)),
		continentsComparison: l("continents_comparison", noArgs(svc.ContinentsComparison)),
		byContinent:          l("by_continent", byID(svc.ByContinent)),
		pandemicByContinent:  l("pandemic_by_continent", byID(svc.PandemicByContinent)),
		regions:              l("regions", noArgs(svc.Regions)),
		predictions:          l("predictions", noArgs(svc.AllPredictions)),
		diagnostic:           l("diagnostic", noArgs(svc.Diagnostic)),

		timeline: l("timeline", func(_ context.Context, request any) (any, error) {
			req := request.(*timelineReq)
			return svc.Timeline(req.PandemicID, req.RegionID)
		}),
		compare: l("compare", func(_ context.Context, request any) (any, error) {
			req := request.(*compareReq)
			return svc.Compare(req.Pandemic1, req.Pandemic2, req.RegionID)
		}),
		comparative: l("comparative", func(context.Context, any) (any, error) {
			p, err := svc.Pandemics()
			if err != nil {
				return nil, err
			}
			c, err := svc.ContinentsComparison()
			if err != nil {
				return nil, err
			}
			return comparativeResponse{Pandemics: p, Continents: c}, nil
		}),
		predictionsPage: l("predictions_page", func(_ context.Context, request any) (any, error) {
			req := request.(*pageReq)
			return svc.Predictions(req.Page, req.Size)
		}),
		facts: l("facts", func(_ context.Context, request any) (any, error) {
			return svc.Facts(request.(*limitReq).Limit)
		}),
		health: l("health", func(context.Context, any) (any, error) {
			d, err := svc.Diagnostic()
			if err != nil {
				return nil, err
			}
			return healthResponse{
				Status:       "ok",
				Pandemics:    len(d.Pandemics),
				Regions:      d.Regions,
				TotalRecords: d.TotalRecords,
			}, nil
		}),
	}
}
