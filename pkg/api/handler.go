package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hazyhaar/pandemic-registry/pkg/kit"
	"github.com/hazyhaar/pandemic-registry/pkg/stats"
	"github.com/mark3labs/mcp-go/server"
)

var errBadRequest = errors.New("bad request")

// NewRouter returns an http.Handler with the /api routes of the dashboard.
// When mcpSrv is non-nil it is also served at /mcp over streamable HTTP.
func NewRouter(svc *stats.Service, mcpSrv *server.MCPServer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	e := newEndpoints(svc, logger)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", serve(e.health, none))
	mux.HandleFunc("GET /api/diagnostic", serve(e.diagnostic, none))

	mux.HandleFunc("GET /api/pandemics", serve(e.listPandemics, none))
	mux.HandleFunc("GET /api/regions", serve(e.regions, none))

	mux.HandleFunc("GET /api/stats/by-pandemic/{pandemicId}", serve(e.byPandemic, idFrom("pandemicId")))
	mux.HandleFunc("GET /api/stats/by-region/{regionId}", serve(e.byRegion, idFrom("regionId")))
	mux.HandleFunc("GET /api/stats/timeline/{pandemicId}/{regionId}", serve(e.timeline, decodeTimeline))
	mux.HandleFunc("GET /api/stats/compare/{pandemic1Id}/{pandemic2Id}/{regionId}", serve(e.compare, decodeCompare))
	mux.HandleFunc("GET /api/stats/continents-comparison", serve(e.continentsComparison, none))
	mux.HandleFunc("GET /api/stats/by-continent/{continentId}", serve(e.byContinent, idFrom("continentId")))

	mux.HandleFunc("GET /api/analysis/pandemics", serve(e.pandemics, none))
	mux.HandleFunc("GET /api/analysis/continents", serve(e.continentsComparison, none))
	mux.HandleFunc("GET /api/analysis/comparative", serve(e.comparative, none))
	mux.HandleFunc("GET /api/analysis/pandemic/{pandemicId}/by-continent", serve(e.pandemicByContinent, idFrom("pandemicId")))

	mux.HandleFunc("GET /api/predictions", serve(e.predictions, none))
	mux.HandleFunc("GET /api/predictions/paged", serve(e.predictionsPage, decodePage))

	mux.HandleFunc("GET /api/debug/totalbydays", serve(e.facts, decodeLimit))

	if mcpSrv != nil {
		mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true)))
	}

	return kit.HTTPContext(cors(mux))
}

type decodeFunc func(*http.Request) (any, error)

// serve adapts an Endpoint to HTTP. Decode failures are 400, missing
// pandemics, regions or continents are 404.
func serve(ep kit.Endpoint, decode decodeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp, err := ep(r.Context(), req)
		if err != nil {
			writeError(w, statusOf(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, stats.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func none(*http.Request) (any, error) { return nil, nil }

func pathID(r *http.Request, name string) (int64, error) {
	v := r.PathValue(name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, v)
	}
	return id, nil
}

func idFrom(name string) decodeFunc {
	return func(r *http.Request) (any, error) {
		id, err := pathID(r, name)
		if err != nil {
			return nil, err
		}
		return &idReq{ID: id}, nil
	}
}

func decodeTimeline(r *http.Request) (any, error) {
	p, err := pathID(r, "pandemicId")
	if err != nil {
		return nil, err
	}
	reg, err := pathID(r, "regionId")
	if err != nil {
		return nil, err
	}
	return &timelineReq{PandemicID: p, RegionID: reg}, nil
}

func decodeCompare(r *http.Request) (any, error) {
	var req compareReq
	var err error
	if req.Pandemic1, err = pathID(r, "pandemic1Id"); err != nil {
		return nil, err
	}
	if req.Pandemic2, err = pathID(r, "pandemic2Id"); err != nil {
		return nil, err
	}
	if req.RegionID, err = pathID(r, "regionId"); err != nil {
		return nil, err
	}
	return &req, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, v)
	}
	return n, nil
}

func decodePage(r *http.Request) (any, error) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		return nil, err
	}
	size, err := queryInt(r, "size", DefaultPageSize)
	if err != nil {
		return nil, err
	}
	if page < 0 || size < 1 || size > MaxPageSize {
		return nil, fmt.Errorf("%w: page must be >= 0 and size in [1, %d]", errBadRequest, MaxPageSize)
	}
	return &pageReq{Page: page, Size: size}, nil
}

func decodeLimit(r *http.Request) (any, error) {
	limit, err := queryInt(r, "limit", stats.DefaultFactLimit)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", errBadRequest)
	}
	return &limitReq{Limit: limit}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Mcp-Session-Id, "+kit.RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
