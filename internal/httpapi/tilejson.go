package httpapi

// tileJSON is a TileJSON 3.0 document (https://github.com/mapbox/tilejson-spec),
// the machine-readable "what tiles are available" description the teacher's
// WMTS capabilities document serves for the old imagery sources
// (internal/wmts.Capabilities) — regenerated here for XYZ vector/raster
// tiles rather than parsed from a remote WMTS endpoint.
type tileJSON struct {
	TileJSON    string   `json:"tilejson"`
	Name        string   `json:"name"`
	Tiles       []string `json:"tiles"`
	Scheme      string   `json:"scheme"`
	MinZoom     int      `json:"minzoom"`
	MaxZoom     int      `json:"maxzoom"`
	Attribution string   `json:"attribution,omitempty"`
	Format      string   `json:"format"`
}
