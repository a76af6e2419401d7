package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/walkthru/seamap-tiled/internal/apierr"
	"github.com/walkthru/seamap-tiled/internal/sector"
	"github.com/walkthru/seamap-tiled/internal/tilemath"
)

// handlePMTilesList serves GET /pmtiles: the committed sector directories.
func (a *API) handlePMTilesList(w http.ResponseWriter, r *http.Request) {
	sectors, err := a.sector.List()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, sectorIDs(sectors))
}

// handlePMTilesStatus serves GET /pmtiles/status: the orchestrator's
// current queue snapshot.
func (a *API) handlePMTilesStatus(w http.ResponseWriter, r *http.Request) {
	status := a.sector.Status()
	writeJSON(w, struct {
		Active   bool     `json:"active"`
		Total    int      `json:"total"`
		Done     int      `json:"done"`
		Queue    []string `json:"queue"`
		Failed   []string `json:"failed"`
		Progress struct {
			Sector string `json:"sector"`
			Source string `json:"source"`
			Human  string `json:"human"`
		} `json:"progress"`
	}{
		Active: status.Active,
		Total:  status.Total,
		Done:   status.Done,
		Queue:  sectorIDs(status.Queue),
		Failed: sectorIDs(status.Failed),
		Progress: struct {
			Sector string `json:"sector"`
			Source string `json:"source"`
			Human  string `json:"human"`
		}{
			Sector: status.Progress.Sector,
			Source: status.Progress.Source,
			Human:  status.Progress.Human(),
		},
	})
}

// handleCacheStats serves the supplemented GET /pmtiles/cache-stats
// endpoint, surfacing internal/tilecache.Cache.Stats for operators deciding
// when to prune the filesystem cache (see SPEC_FULL.md's SUPPLEMENTED
// FEATURES).
func (a *API) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	entries, sizeBytes, err := a.cache.Stats()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, struct {
		Entries   int   `json:"entries"`
		SizeBytes int64 `json:"sizeBytes"`
	}{entries, sizeBytes})
}

// handlePMTilesEnqueue serves POST /pmtiles?tile=z/x/y[,z/x/y...].
func (a *API) handlePMTilesEnqueue(w http.ResponseWriter, r *http.Request) {
	ids, err := parseTileParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.sector.Enqueue(ids); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handlePMTilesCancel serves POST /pmtiles/cancel.
func (a *API) handlePMTilesCancel(w http.ResponseWriter, r *http.Request) {
	a.sector.Cancel()
	w.WriteHeader(http.StatusOK)
}

// handlePMTilesDelete serves DELETE /pmtiles?tile=z/x/y.
func (a *API) handlePMTilesDelete(w http.ResponseWriter, r *http.Request) {
	ids, err := parseTileParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if len(ids) != 1 {
		a.writeError(w, r, apierr.Validation("delete takes exactly one tile=z/x/y", nil))
		return
	}
	if err := a.sector.Delete(ids[0]); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func parseTileParam(r *http.Request) ([]tilemath.Sector, error) {
	raw := r.URL.Query().Get("tile")
	if raw == "" {
		return nil, apierr.Validation("missing tile query parameter", nil)
	}
	parts := strings.Split(raw, ",")
	ids := make([]tilemath.Sector, 0, len(parts))
	for _, p := range parts {
		id, err := sector.ParseID(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func sectorIDs(sectors []tilemath.Sector) []string {
	out := make([]string, len(sectors))
	for i, s := range sectors {
		out[i] = fmt.Sprintf("%d/%d/%d", s.Z, s.X, s.Y)
	}
	return out
}
