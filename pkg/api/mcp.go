package api

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/pandemic-registry/pkg/kit"
	"github.com/hazyhaar/pandemic-registry/pkg/stats"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer returns an MCP server exposing the read-side statistics as tools.
func NewMCPServer(svc *stats.Service, version string, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	srv := server.NewMCPServer("pandemic-registry", version, server.WithToolCapabilities(false))
	RegisterMCPTools(srv, svc, logger)
	return srv
}

// RegisterMCPTools registers the statistics tools on srv.
func RegisterMCPTools(srv *server.MCPServer, svc *stats.Service, logger *slog.Logger) {
	e := newEndpoints(svc, logger)

	kit.RegisterMCPTool(srv, mcp.NewTool("list_pandemics",
		mcp.WithDescription("List loaded pandemics with their total cases, deaths, mortality rate and number of affected regions."),
	), e.pandemics, kit.NoArgs)

	kit.RegisterMCPTool(srv, mcp.NewTool("list_regions",
		mcp.WithDescription("List regions (countries) with their continent and how many daily rows they have."),
	), e.regions, kit.NoArgs)

	kit.RegisterMCPTool(srv, mcp.NewTool("pandemic_timeline",
		mcp.WithDescription("Daily cumulative cases, deaths and recovered of one pandemic in one region, oldest first."),
		mcp.WithNumber("pandemic_id", mcp.Required(), mcp.Description("Pandemic ID from list_pandemics")),
		mcp.WithNumber("region_id", mcp.Required(), mcp.Description("Region ID from list_regions")),
	), e.timeline, func(args map[string]any) (any, error) {
		p, err := kit.IntArg(args, "pandemic_id")
		if err != nil {
			return nil, err
		}
		r, err := kit.IntArg(args, "region_id")
		if err != nil {
			return nil, err
		}
		return &timelineReq{PandemicID: p, RegionID: r}, nil
	})

	kit.RegisterMCPTool(srv, mcp.NewTool("compare_pandemics",
		mcp.WithDescription("Compare the peak day of two pandemics in one region: cases, deaths, their ratios and mortality rates."),
		mcp.WithNumber("pandemic1_id", mcp.Required(), mcp.Description("First pandemic ID")),
		mcp.WithNumber("pandemic2_id", mcp.Required(), mcp.Description("Second pandemic ID")),
		mcp.WithNumber("region_id", mcp.Required(), mcp.Description("Region ID")),
	), e.compare, func(args map[string]any) (any, error) {
		var req compareReq
		var err error
		if req.Pandemic1, err = kit.IntArg(args, "pandemic1_id"); err != nil {
			return nil, err
		}
		if req.Pandemic2, err = kit.IntArg(args, "pandemic2_id"); err != nil {
			return nil, err
		}
		if req.RegionID, err = kit.IntArg(args, "region_id"); err != nil {
			return nil, err
		}
		return &req, nil
	})

	continentStats := func(ctx context.Context, request any) (any, error) {
		if request == nil {
			return e.continentsComparison(ctx, nil)
		}
		return e.byContinent(ctx, request)
	}
	kit.RegisterMCPTool(srv, mcp.NewTool("continent_stats",
		mcp.WithDescription("COVID and SARS totals per continent, with per-region latest snapshots. Without continent_id, every continent is returned."),
		mcp.WithNumber("continent_id", mcp.Description("Restrict to one continent")),
	), continentStats, func(args map[string]any) (any, error) {
		if _, ok := args["continent_id"]; !ok {
			return nil, nil
		}
		id, err := kit.IntArg(args, "continent_id")
		if err != nil {
			return nil, err
		}
		return &idReq{ID: id}, nil
	})
}
