// Package httpapi is the external HTTP surface (§6): a chi router exposing
// raw and derived tile endpoints, TileJSON metadata, the sector download
// orchestrator's management endpoints, and static style/sprite/glyph assets.
// Grounded on the desktop client's tileserver.Server (CORS wrapping, random
// local listener) generalized from a bare http.ServeMux to go-chi/chi/v5
// route groups in the style of tomtom215-cartographus's chi_router.go, with
// request logging via github.com/rs/zerolog the way internal/sector logs.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/walkthru/seamap-tiled/internal/config"
	"github.com/walkthru/seamap-tiled/internal/connectivity"
	"github.com/walkthru/seamap-tiled/internal/derived"
	"github.com/walkthru/seamap-tiled/internal/resolver"
	"github.com/walkthru/seamap-tiled/internal/sector"
	"github.com/walkthru/seamap-tiled/internal/staticassets"
	"github.com/walkthru/seamap-tiled/internal/tilecache"
)

// API wires the resolved, derived, sector, and static-asset layers behind
// one router. It holds no state of its own beyond its collaborators.
type API struct {
	cfg      *config.Config
	resolver *resolver.Resolver
	derived  *derived.Facade
	sector   *sector.Orchestrator
	assets   *staticassets.Store
	cache    *tilecache.Cache
	monitor  *connectivity.Monitor
	logger   zerolog.Logger
}

// New builds the API over its collaborators. Call Router to obtain the
// http.Handler to serve.
func New(cfg *config.Config, res *resolver.Resolver, der *derived.Facade, orch *sector.Orchestrator, assets *staticassets.Store, cache *tilecache.Cache, monitor *connectivity.Monitor, logger zerolog.Logger) *API {
	return &API{
		cfg:      cfg,
		resolver: res,
		derived:  der,
		sector:   orch,
		assets:   assets,
		cache:    cache,
		monitor:  monitor,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}
}

// Router builds the chi router for this API, matching the §6 endpoint
// table: raw tiles, derived tiles, sector management, and static assets.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(a.requestLogger)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Accept"},
		MaxAge:         300,
	}))

	r.Get("/healthz", a.handleHealthz)

	r.Get("/tiles/{source}.json", a.handleSourceTileJSON)
	r.Get("/tiles/{source}/{z}/{x}/{y}.{ext}", a.handleRawTile)

	for kind := range derivedKinds {
		r.Get("/"+kind+"/{source}.json", a.handleDerivedTileJSONFor(kind))
		r.Get("/"+kind+"/{source}/{z}/{x}/{y}.pbf", a.handleDerivedTileFor(kind))
	}
	r.Get("/composite/{source}.json", a.handleDerivedTileJSONFor(derived.KindComposite))
	r.Get("/composite/{source}/{z}/{x}/{y}.pbf", a.handleCompositeTile)

	r.Route("/pmtiles", func(r chi.Router) {
		r.Get("/", a.handlePMTilesList)
		r.Get("/status", a.handlePMTilesStatus)
		r.Get("/cache-stats", a.handleCacheStats)
		r.Post("/", a.handlePMTilesEnqueue)
		r.Post("/cancel", a.handlePMTilesCancel)
		r.Delete("/", a.handlePMTilesDelete)
	})

	r.Get("/styles/{name}.json", a.handleStyle)
	r.Get("/sprites/*", a.handleSprite)
	r.Get("/glyphs/{fontstack}/{range}.pbf", a.handleGlyph)

	return r
}

// Cache-Control windows (§204): tile and static-asset bytes are effectively
// immutable once extracted, so they get a day; TileJSON/style metadata
// documents can change when sources or styles are reconfigured, so they get
// an hour.
const (
	tileMaxAge     = 24 * time.Hour
	tileJSONMaxAge = time.Hour
)

// derivedKinds are the three per-source derived tile kinds exposed
// directly under their own path prefix; composite is routed separately
// since it has no source-driven encoding dispatch of its own.
var derivedKinds = map[string]struct{}{
	derived.KindContours:   {},
	derived.KindBathymetry: {},
	derived.KindSoundings:  {},
}

type healthzResponse struct {
	Status  string `json:"status"`
	Online  bool   `json:"online"`
	Sectors struct {
		Active bool `json:"active"`
	} `json:"sectors"`
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{Status: "ok"}
	resp.Online = a.monitor.Online()
	resp.Sectors.Active = a.sector.Status().Active
	writeJSON(w, resp)
}

// requestLogger logs each request at debug level with method, path, status,
// latency, and a generated request id, the way internal/sector logs its own
// lifecycle events. The id is echoed back on X-Request-Id so a client report
// can be correlated with a specific log line.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}
