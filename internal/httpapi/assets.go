package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleStyle serves GET /styles/{name}.json. Style documents get the
// shorter TileJSON-like cache window (spec.md:204) since they're the asset
// most likely to change when a map's layer config is updated.
func (a *API) handleStyle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := a.assets.ServeHTTP(w, fmt.Sprintf("styles/%s.json", name), tileJSONMaxAge); err != nil {
		a.writeError(w, r, err)
	}
}

// handleSprite serves GET /sprites/* — sprite images and their companion
// JSON index, both read straight through to the static asset store.
func (a *API) handleSprite(w http.ResponseWriter, r *http.Request) {
	rest := chi.URLParam(r, "*")
	if err := a.assets.ServeHTTP(w, "sprites/"+rest, tileMaxAge); err != nil {
		a.writeError(w, r, err)
	}
}

// handleGlyph serves GET /glyphs/{fontstack}/{range}.pbf.
func (a *API) handleGlyph(w http.ResponseWriter, r *http.Request) {
	fontstack := chi.URLParam(r, "fontstack")
	rng := chi.URLParam(r, "range")
	if err := a.assets.ServeHTTP(w, fmt.Sprintf("glyphs/%s/%s.pbf", fontstack, rng), tileMaxAge); err != nil {
		a.writeError(w, r, err)
	}
}
