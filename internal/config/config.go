// Package config describes the host-supplied configuration for the tile
// server: source descriptors and the four filesystem roots. There are no
// environment variables; the embedding host constructs a Config and passes
// it in directly, the same way the desktop app's UserSettings is a plain
// struct populated by its caller.
package config

import (
	"fmt"
	"time"
)

// Encoding is the terrain-RGB variant a raster source is encoded with.
type Encoding string

const (
	EncodingNone      Encoding = "none"
	EncodingTerrarium Encoding = "terrarium"
	EncodingMapbox    Encoding = "mapbox"
)

// Format is the tile payload format.
type Format string

const (
	FormatPBF  Format = "pbf"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// ContentType returns the HTTP content-type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPBF:
		return "application/x-protobuf"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Source is a static descriptor for one of the five upstream tile sources.
type Source struct {
	Name string
	// URL is the upstream cloud-optimized archive location — the same file
	// both the sector orchestrator's extraction utility and the resolver's
	// online tier (HTTP range reads) pull from.
	URL         string
	Output      string // archive filename within a committed sector directory
	MinZoom     int
	MaxZoom     int
	Format      Format
	Encoding    Encoding
	Attribution string
}

// ContentType is a convenience accessor matching the source's format.
func (s Source) ContentType() string {
	return s.Format.ContentType()
}

// Config is the full set of host-supplied settings.
type Config struct {
	// Sources are the five configured upstream descriptors, keyed by name.
	Sources map[string]Source

	// PMTilesPath is the offline archive root: {pmtilesPath}/{z6}_{x6}_{y6}/{source.output}.
	PMTilesPath string
	// StylePath holds style/sprite/glyph static assets.
	StylePath string
	// TilesPath is the filesystem tile cache root for raw upstream tiles.
	TilesPath string
	// DerivedPath is the filesystem cache root for contour/bathymetry/soundings tiles.
	DerivedPath string

	// BathymetryLevels are the depth levels (positive metres) used for isobands,
	// converted to negatives internally. Defaults to [2,5,10,20,50].
	BathymetryLevels []float64

	// FreshnessWindow is the offline-vs-refresh cutoff (§4.E), configurable but
	// defaulting to the spec's hard-coded 7 days.
	FreshnessWindow time.Duration

	// EmitLandCeiling is the opt-in flag for a synthetic "+10000" land-polygon
	// isoband range, false by default. No code reads it: bathymetry isobands
	// never include a land range, whatever its value.
	EmitLandCeiling bool

	// ExtractorPath is the name (or path) of the external archive-extraction
	// utility searched for on PATH at startup and before sector operations.
	ExtractorPath string

	// LRUPoolSize bounds the number of open local archive readers (default 50).
	LRUPoolSize int

	// ConnectivityProbeURL is the upstream HEAD-probed every 10s. When empty,
	// Validate fills it with one configured source's URL; Sources is a map,
	// so which source is picked is not defined when several are configured.
	ConnectivityProbeURL string
}

// DefaultBathymetryLevels is the spec's default isoband ladder, in metres.
var DefaultBathymetryLevels = []float64{2, 5, 10, 20, 50}

// DefaultFreshnessWindow is the spec's hard-coded default, exposed as a
// configurable field so a host can override it without moving the default.
const DefaultFreshnessWindow = 7 * 24 * time.Hour

// DefaultLRUPoolSize is the bound on open local archive handles (§4.B).
const DefaultLRUPoolSize = 50

// Default returns a Config with sensible defaults and the five canonical
// marine-navigation sources, awaiting the host to fill in filesystem roots.
func Default() *Config {
	return &Config{
		Sources:          DefaultSources(),
		BathymetryLevels: append([]float64(nil), DefaultBathymetryLevels...),
		FreshnessWindow:  DefaultFreshnessWindow,
		EmitLandCeiling:  false,
		ExtractorPath:    "pmtiles-extract",
		LRUPoolSize:      DefaultLRUPoolSize,
	}
}

// DefaultSources returns the five upstream source descriptors named in §1.
func DefaultSources() map[string]Source {
	sources := []Source{
		{
			Name:        "basemap",
			URL:         "https://archives.example.org/basemap.pmtiles",
			Output:      "basemap.pmtiles",
			MinZoom:     0,
			MaxZoom:     14,
			Format:      FormatPBF,
			Encoding:    EncodingNone,
			Attribution: "© OpenStreetMap contributors",
		},
		{
			Name:        "seamap",
			URL:         "https://archives.example.org/seamap.pmtiles",
			Output:      "seamap.pmtiles",
			MinZoom:     0,
			MaxZoom:     18,
			Format:      FormatPBF,
			Encoding:    EncodingNone,
			Attribution: "© OpenSeaMap contributors",
		},
		{
			Name:        "gebco",
			URL:         "https://archives.example.org/gebco.pmtiles",
			Output:      "gebco.pmtiles",
			MinZoom:     0,
			MaxZoom:     9,
			Format:      FormatPNG,
			Encoding:    EncodingTerrarium,
			Attribution: "GEBCO Compilation Group",
		},
		{
			Name:        "emodnet",
			URL:         "https://archives.example.org/emodnet.pmtiles",
			Output:      "emodnet.pmtiles",
			MinZoom:     0,
			MaxZoom:     12,
			Format:      FormatPNG,
			Encoding:    EncodingTerrarium,
			Attribution: "EMODnet Bathymetry Consortium",
		},
		{
			Name:        "mapterhorn",
			URL:         "https://archives.example.org/mapterhorn.pmtiles",
			Output:      "mapterhorn.pmtiles",
			MinZoom:     0,
			MaxZoom:     14,
			Format:      FormatWebP,
			Encoding:    EncodingMapbox,
			Attribution: "Mapterhorn",
		},
	}

	m := make(map[string]Source, len(sources))
	for _, s := range sources {
		m[s.Name] = s
	}
	return m
}

// Validate checks that the roots and sources are usable.
func (c *Config) Validate() error {
	if c.PMTilesPath == "" || c.StylePath == "" || c.TilesPath == "" || c.DerivedPath == "" {
		return fmt.Errorf("config: all four filesystem roots must be set")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one source must be configured")
	}
	if c.LRUPoolSize <= 0 {
		c.LRUPoolSize = DefaultLRUPoolSize
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = DefaultFreshnessWindow
	}
	if c.ConnectivityProbeURL == "" {
		for _, s := range c.Sources {
			c.ConnectivityProbeURL = s.URL
			break
		}
	}
	return nil
}
