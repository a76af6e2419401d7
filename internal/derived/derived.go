// Package derived is the derived-tile facade (component K): glues the
// terrain decoder, isoline/isoband generator, soundings sampler, and
// vector-tile encoder (G–J) behind the same cache-and-freshness contract
// the resolver uses for raw tiles, regenerating a contour/bathymetry/
// soundings/composite tile whenever its underlying source has moved on.
// Grounded on the desktop client's tileserver.Server dispatch shape
// (internal/resolver.Resolver is its sibling for raw tiles) with neighbor
// fan-out via golang.org/x/sync/errgroup, the same module the resolver
// already depends on for request coalescing.
package derived

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"sync"
	"time"

	"golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/paulmach/orb"

	"github.com/walkthru/seamap-tiled/internal/apierr"
	"github.com/walkthru/seamap-tiled/internal/config"
	"github.com/walkthru/seamap-tiled/internal/isoline"
	"github.com/walkthru/seamap-tiled/internal/resolver"
	"github.com/walkthru/seamap-tiled/internal/soundings"
	"github.com/walkthru/seamap-tiled/internal/terrain"
	"github.com/walkthru/seamap-tiled/internal/tilecache"
	"github.com/walkthru/seamap-tiled/internal/tilemath"
	"github.com/walkthru/seamap-tiled/internal/vectortile"
)

// Derived tile kinds, also the tilecache "kind" segment they're stored under.
const (
	KindContours   = "contours"
	KindBathymetry = "bathymetry"
	KindSoundings  = "soundings"
	KindComposite  = "composite"
)

// overzoom is the neighbor-fetch offset of §4.G: the 3×3 neighborhood is
// sourced one zoom level coarser than the tile being generated, then split
// to the quadrant of interest. The spec calls this configurable but only
// ever exercises the default.
const overzoom = 1

// deepestMetres bounds the deepest bathymetry isoband, past any charted
// ocean trench, so the configured positive levels never need an explicit
// floor.
const deepestMetres = 11000

// Result is a generated (or cache-hit) derived tile plus its timestamp.
type Result struct {
	Bytes   []byte
	ModTime time.Time
}

// Facade composes the resolver with the synthesis pipeline.
type Facade struct {
	cfg      *config.Config
	cache    *tilecache.Cache
	resolver *resolver.Resolver
}

// New builds a Facade over a resolver and the derived-tile cache root.
func New(cfg *config.Config, cache *tilecache.Cache, res *resolver.Resolver) *Facade {
	return &Facade{cfg: cfg, cache: cache, resolver: res}
}

// Get resolves one derived-tile request per the 4.K contract: validate,
// consult the cache, consult the source tile's timestamp, regenerate on
// staleness or absence, and cache+return (or 204 on empty geometry).
func (f *Facade) Get(ctx context.Context, kind, sourceName string, z, x, y int) (*Result, error) {
	src, ok := f.cfg.Sources[sourceName]
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("unknown source %q", sourceName), nil)
	}
	if src.Encoding == config.EncodingNone {
		return nil, apierr.Validation(fmt.Sprintf("source %q has no terrain encoding", sourceName), nil)
	}

	minZoom := src.MinZoom
	if overzoom == 1 {
		minZoom++
	}
	if z < minZoom || z > 14 {
		return nil, apierr.Empty
	}

	cacheEntry, hasCache := f.cache.Get(kind, sourceName, z, x, y)
	if hasCache {
		parentZ, parentX, parentY := z-overzoom, x>>overzoom, y>>overzoom
		if srcTime, srcKnown := f.resolver.Peek(sourceName, parentZ, parentX, parentY); !srcKnown || !srcTime.After(cacheEntry.ModTime) {
			data, err := cacheEntry.Open()
			if err != nil {
				return nil, apierr.IO("reading cached derived tile", err)
			}
			return &Result{Bytes: data, ModTime: cacheEntry.ModTime}, nil
		}
	}

	grid, srcTime, err := f.fetchComposedGrid(ctx, src, z, x, y)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch kind {
	case KindContours:
		data, err = f.encodeContours(grid, z)
	case KindBathymetry:
		data, err = f.encodeBathymetry(grid)
	case KindSoundings:
		data, err = f.encodeSoundings(grid, z, x, y)
	default:
		return nil, apierr.Validation(fmt.Sprintf("unknown derived kind %q", kind), nil)
	}
	if err != nil {
		return nil, apierr.Unexpected("encoding derived tile", err)
	}
	if len(data) == 0 {
		return nil, apierr.Empty
	}

	if err := f.cache.Put(kind, sourceName, z, x, y, data); err != nil {
		return nil, apierr.IO("writing derived tile to cache", err)
	}
	return &Result{Bytes: data, ModTime: srcTime}, nil
}

// Composite merges the basemap, seamap, contours, bathymetry, and soundings
// layers for one (z,x,y) into a single tile, regenerating when any
// contributor is newer than the cached composite.
func (f *Facade) Composite(ctx context.Context, terrainSource string, z, x, y int) (*Result, error) {
	cacheEntry, hasCache := f.cache.Get(KindComposite, terrainSource, z, x, y)

	var newest time.Time
	if mt, ok := f.resolver.Peek("basemap", z, x, y); ok && mt.After(newest) {
		newest = mt
	}
	if mt, ok := f.resolver.Peek("seamap", z, x, y); ok && mt.After(newest) {
		newest = mt
	}
	for _, kind := range []string{KindContours, KindBathymetry, KindSoundings} {
		if mt, ok := f.cache.ModTime(kind, terrainSource, z, x, y); ok {
			if mt.After(newest) {
				newest = mt
			}
		} else {
			// Never generated: force a rebuild of the composite so this
			// contributor gets a chance to populate its layer.
			newest = time.Now()
		}
	}

	if hasCache && !newest.After(cacheEntry.ModTime) {
		data, err := cacheEntry.Open()
		if err != nil {
			return nil, apierr.IO("reading cached composite tile", err)
		}
		return &Result{Bytes: data, ModTime: cacheEntry.ModTime}, nil
	}

	var layers []vectortile.Layer
	for _, name := range []string{"basemap", "seamap"} {
		decoded, err := f.decodeSourceLayers(ctx, name, z, x, y)
		if err != nil {
			return nil, err
		}
		layers = append(layers, decoded...)
	}
	for _, kind := range []string{KindContours, KindBathymetry, KindSoundings} {
		res, err := f.Get(ctx, kind, terrainSource, z, x, y)
		if err != nil && !errors.Is(err, apierr.Empty) {
			return nil, err
		}
		if res == nil {
			continue
		}
		decoded, err := vectortile.Decode(res.Bytes)
		if err != nil {
			return nil, apierr.IO(fmt.Sprintf("decoding %s tile", kind), err)
		}
		layers = append(layers, decoded...)
	}

	if len(layers) == 0 {
		return nil, apierr.Empty
	}
	data, err := vectortile.Encode(layers)
	if err != nil {
		return nil, apierr.Unexpected("encoding composite tile", err)
	}
	if err := f.cache.Put(KindComposite, terrainSource, z, x, y, data); err != nil {
		return nil, apierr.IO("writing composite tile to cache", err)
	}
	return &Result{Bytes: data, ModTime: time.Now()}, nil
}

func (f *Facade) decodeSourceLayers(ctx context.Context, sourceName string, z, x, y int) ([]vectortile.Layer, error) {
	if _, ok := f.cfg.Sources[sourceName]; !ok {
		return nil, nil
	}
	tile, err := f.resolver.Get(ctx, sourceName, z, x, y)
	if err != nil {
		if errors.Is(err, apierr.Empty) {
			return nil, nil
		}
		return nil, err
	}
	layers, err := vectortile.Decode(tile.Bytes)
	if err != nil {
		return nil, apierr.IO(fmt.Sprintf("decoding %s tile", sourceName), err)
	}
	return layers, nil
}

// fetchComposedGrid fetches the 3×3 neighborhood of terrain tiles at
// z-overzoom, deduplicating repeated coordinates (neighbors can coincide
// once overzoom maps several of the nine positions onto the same parent
// tile), composes them, and resamples the quadrant of interest.
func (f *Facade) fetchComposedGrid(ctx context.Context, src config.Source, z, x, y int) (*terrain.HeightTile, time.Time, error) {
	parentZ := z - overzoom
	parentX := x >> overzoom
	parentY := y >> overzoom

	type coord struct{ z, x, y int }
	var positions [9]*coord
	unique := make(map[coord]struct{})
	for i := 0; i < 9; i++ {
		dx := i%3 - 1
		dy := i/3 - 1
		ny := parentY + dy
		if !tilemath.InRange(ny, parentZ) {
			continue // off-sphere neighbor: stays nil, treated as all-zero
		}
		nx := tilemath.WrapX(parentX+dx, parentZ)
		c := coord{parentZ, nx, ny}
		positions[i] = &c
		unique[c] = struct{}{}
	}

	type fetched struct {
		tile    *terrain.HeightTile
		modTime time.Time
	}
	results := make(map[coord]fetched, len(unique))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for c := range unique {
		c := c
		g.Go(func() error {
			tile, modTime, err := f.fetchTerrainTile(gctx, src, c.z, c.x, c.y)
			if err != nil {
				if errors.Is(err, apierr.Empty) {
					return nil
				}
				return err
			}
			mu.Lock()
			results[c] = fetched{tile: tile, modTime: modTime}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, time.Time{}, err
	}

	var neighbors [9]*terrain.HeightTile
	var newest time.Time
	for i, c := range positions {
		if c == nil {
			continue
		}
		if r, ok := results[*c]; ok {
			neighbors[i] = r.tile
			if r.modTime.After(newest) {
				newest = r.modTime
			}
		}
	}
	if neighbors[terrain.Center] == nil {
		return nil, time.Time{}, apierr.Empty
	}

	combined := terrain.Combine(neighbors)
	factor := 3 * (1 << overzoom)
	sx := (1 << overzoom) + (x % (1 << overzoom))
	sy := (1 << overzoom) + (y % (1 << overzoom))
	return terrain.Resample(combined.Split(factor, sx, sy)), newest, nil
}

func (f *Facade) fetchTerrainTile(ctx context.Context, src config.Source, z, x, y int) (*terrain.HeightTile, time.Time, error) {
	tile, err := f.resolver.Get(ctx, src.Name, z, x, y)
	if err != nil {
		return nil, time.Time{}, err
	}
	img, err := decodeRaster(src.Format, tile.Bytes)
	if err != nil {
		return nil, time.Time{}, apierr.IO(fmt.Sprintf("decoding %s raster", src.Name), err)
	}
	ht, err := terrain.Decode(img, src.Encoding)
	if err != nil {
		return nil, time.Time{}, apierr.IO(fmt.Sprintf("decoding %s terrain", src.Name), err)
	}
	return ht, tile.ModTime, nil
}

func decodeRaster(format config.Format, data []byte) (image.Image, error) {
	switch format {
	case config.FormatPNG:
		return png.Decode(bytes.NewReader(data))
	case config.FormatWebP:
		return webp.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("derived: unsupported raster format %q", format)
	}
}

// heightGrid adapts *terrain.HeightTile to the isoline.Grid and
// soundings.Grid interfaces, both of which only need integer-indexed
// elevation lookups.
type heightGrid struct{ t *terrain.HeightTile }

func (g heightGrid) Width() int  { return g.t.Width }
func (g heightGrid) Height() int { return g.t.Height }
func (g heightGrid) At(x, y int) float64 { return float64(g.t.Get(x, y)) }

func gridRange(t *terrain.HeightTile) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range t.Data {
		fv := float64(v)
		if math.IsNaN(fv) {
			continue
		}
		if fv < min {
			min = fv
		}
		if fv > max {
			max = fv
		}
	}
	return min, max
}

func toOrbPoints(pts []isoline.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

func (f *Facade) encodeContours(grid *terrain.HeightTile, z int) ([]byte, error) {
	min, max := gridRange(grid)
	if math.IsInf(min, 1) {
		return nil, nil
	}
	levels := isoline.LevelsFromInterval(min, max, isoline.ContourIntervalForZoom(z))
	lines := isoline.Contours(heightGrid{grid}, levels, vectortile.Extent)

	var features []vectortile.Feature
	for level, ls := range lines {
		for _, ln := range ls {
			if len(ln.Points) < 2 {
				continue
			}
			features = append(features, vectortile.NewLineFeature(toOrbPoints(ln.Points), map[string]interface{}{
				"level": level,
			}))
		}
	}
	if len(features) == 0 {
		return nil, nil
	}
	return vectortile.Encode([]vectortile.Layer{{Name: "contours", Features: features}})
}

// bathymetryRanges turns the configured positive depth levels into the
// [lower,upper) isoband ranges §4.H's band mode expects, deepest first.
func bathymetryRanges(levels []float64) [][2]float64 {
	bounds := append([]float64{0}, levels...)
	bounds = append(bounds, deepestMetres)
	ranges := make([][2]float64, 0, len(bounds)-1)
	for i := len(bounds) - 2; i >= 0; i-- {
		ranges = append(ranges, [2]float64{-bounds[i+1], -bounds[i]})
	}
	return ranges
}

// encodeBathymetry emits two layers: depth_areas (the isoband polygons) and
// depth_contours (the deeper-boundary label lines of each band), per the
// Open Question decision in DESIGN.md to keep label lines separate from
// fill geometry rather than mixing feature types into one layer.
func (f *Facade) encodeBathymetry(grid *terrain.HeightTile) ([]byte, error) {
	bands := isoline.Isobands(heightGrid{grid}, bathymetryRanges(f.cfg.BathymetryLevels), vectortile.Extent)

	var areas, contours []vectortile.Feature
	for _, band := range bands {
		for _, poly := range band.Polygons {
			holes := make([][]orb.Point, len(poly.Holes))
			for i, h := range poly.Holes {
				holes[i] = toOrbPoints(h)
			}
			areas = append(areas, vectortile.NewPolygonFeature(toOrbPoints(poly.Outer), holes, map[string]interface{}{
				"lower": band.Lower,
				"upper": band.Upper,
			}))
		}
		for _, ll := range band.LabelLines {
			if len(ll.Line.Points) < 2 {
				continue
			}
			contours = append(contours, vectortile.NewLineFeature(toOrbPoints(ll.Line.Points), map[string]interface{}{
				"depth": ll.Depth,
			}))
		}
	}
	if len(areas) == 0 && len(contours) == 0 {
		return nil, nil
	}
	var layers []vectortile.Layer
	if len(areas) > 0 {
		layers = append(layers, vectortile.Layer{Name: "depth_areas", Features: areas})
	}
	if len(contours) > 0 {
		layers = append(layers, vectortile.Layer{Name: "depth_contours", Features: contours})
	}
	return vectortile.Encode(layers)
}

func (f *Facade) encodeSoundings(grid *terrain.HeightTile, z, x, y int) ([]byte, error) {
	points := soundings.Generate(z, x, y, heightGrid{grid}, vectortile.Extent)
	if len(points) == 0 {
		return nil, nil
	}
	features := make([]vectortile.Feature, len(points))
	for i, p := range points {
		features[i] = vectortile.NewPointFeature(float64(p.X), float64(p.Y), map[string]interface{}{
			"depth": p.Depth,
		})
	}
	return vectortile.Encode([]vectortile.Layer{{Name: "soundings", Features: features}})
}
