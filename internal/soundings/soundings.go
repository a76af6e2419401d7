// Package soundings is the point-depth sampler (component I): a
// deterministic jittered-grid sampler drawing from a 32-bit LCG seeded by
// the tile coordinate, so the same tile always yields the same points.
// Hand-written — the spec gives the exact generator algorithm and no pack
// example implements one.
package soundings

import (
	"math"
	"sort"
)

// Grid supplies a raster elevation sample at a pixel coordinate. Satisfied
// by the materialized *terrain.HeightTile via a thin adapter in the
// derived-tile facade.
type Grid interface {
	Width() int
	Height() int
	At(x, y int) float64
}

// Point is a sounding: an extent-space pixel coordinate and the charted
// depth in metres, rounded to one decimal.
type Point struct {
	X, Y  int
	Depth float64
}

// lcg is the 32-bit linear congruential generator the spec specifies:
// s ← s·1664525 + 1013904223 (mod 2^32), unit = s / 2^32.
type lcg struct{ state uint32 }

func newLCG(seed int64) *lcg {
	return &lcg{state: uint32(seed)}
}

func (l *lcg) next() float64 {
	l.state = l.state*1664525 + 1013904223
	return float64(l.state) / 4294967296.0
}

// spacingForZoom is the grid spacing in tile-extent units: denser sampling
// at higher zoom, where there is more screen room to place soundings.
func spacingForZoom(z int) float64 {
	switch {
	case z >= 14:
		return 256
	case z >= 12:
		return 384
	case z >= 10:
		return 512
	default:
		return 768
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Generate samples soundings for tile (z,x,y) against the materialized
// height grid, emitting one point per surviving jittered-grid cell, sorted
// ascending by depth so the shallowest soundings come first.
func Generate(z, x, y int, g Grid, extent float64) []Point {
	seed := int64(z)*1_000_000 + int64(x)*1_000 + int64(y)
	rng := newLCG(seed)
	spacing := spacingForZoom(z)
	w, h := g.Width(), g.Height()

	var points []Point
	for gy := 0.0; gy < extent; gy += spacing {
		for gx := 0.0; gx < extent; gx += spacing {
			jx := rng.next() * (spacing / 2)
			jy := rng.next() * (spacing / 2)
			ex := gx + spacing/4 + jx
			ey := gy + spacing/4 + jy
			if ex >= extent || ey >= extent {
				continue
			}

			rx := clampInt(int(ex/extent*float64(w-1)), 0, w-1)
			ry := clampInt(int(ey/extent*float64(h-1)), 0, h-1)
			elevation := g.At(rx, ry)
			if math.IsNaN(elevation) {
				continue
			}

			depth := math.Round(math.Abs(elevation)*10) / 10
			points = append(points, Point{X: int(ex), Y: int(ey), Depth: depth})
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Depth < points[j].Depth })
	return points
}
