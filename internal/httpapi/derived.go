package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/walkthru/seamap-tiled/internal/apierr"
)

// handleDerivedTileJSONFor returns the TileJSON handler for one derived
// kind (contours, bathymetry, soundings, composite), all served as PBF.
func (a *API) handleDerivedTileJSONFor(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "source")
		src, ok := a.cfg.Sources[name]
		if !ok {
			a.writeError(w, r, apierr.NotFound(fmt.Sprintf("unknown source %q", name), nil))
			return
		}
		doc := tileJSON{
			TileJSON:    "3.0.0",
			Name:        kind + "-" + src.Name,
			Tiles:       []string{a.tileTemplate(r, fmt.Sprintf("/%s/%s/{z}/{x}/{y}.pbf", kind, src.Name))},
			Scheme:      "xyz",
			MinZoom:     src.MinZoom,
			MaxZoom:     14,
			Attribution: src.Attribution,
			Format:      "pbf",
		}
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(tileJSONMaxAge.Seconds())))
		writeJSON(w, doc)
	}
}

// handleDerivedTileFor returns the tile handler for one of the three
// per-source derived kinds, dispatching through derived.Facade.Get.
func (a *API) handleDerivedTileFor(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "source")
		z, x, y, err := parseCoords(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		res, err := a.derived.Get(r.Context(), kind, name, z, x, y)
		if err != nil {
			if errors.Is(err, apierr.Empty) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			a.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(tileMaxAge.Seconds())))
		w.Write(res.Bytes)
	}
}

// handleCompositeTile serves GET /composite/{source}/{z}/{x}/{y}.pbf,
// merging basemap, seamap, and the three derived layers for one terrain
// source into a single vector tile (§4.K).
func (a *API) handleCompositeTile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	z, x, y, err := parseCoords(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	res, err := a.derived.Composite(r.Context(), name, z, x, y)
	if err != nil {
		if errors.Is(err, apierr.Empty) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(tileMaxAge.Seconds())))
	w.Write(res.Bytes)
}
