package isoline

import (
	"math"
	"sort"
)

// Polygon is a band's boundary: one outer ring plus zero or more holes, all
// in tile-extent space, each ring closed (first point repeated as last).
type Polygon struct {
	Outer []Point
	Holes [][]Point
}

// LabeledLine is a label-line feature along the deep boundary of a band.
type LabeledLine struct {
	Line  Line
	Depth float64
}

// Band is one [lower,upper) elevation range's isoband output.
type Band struct {
	Lower, Upper float64
	Polygons     []Polygon
	LabelLines   []LabeledLine
}

// borderPos maps a point known to lie on the grid's border to a scalar
// distance walking clockwise from (0,0): across the top edge, down the
// right edge, back across the bottom edge, up the left edge.
func borderPos(p Point, w, h float64) float64 {
	const eps = 1e-6
	switch {
	case p.Y <= eps:
		return p.X
	case p.X >= w-eps:
		return w + p.Y
	case p.Y >= h-eps:
		return w + h + (w - p.X)
	default:
		return 2*w + h + (h - p.Y)
	}
}

func borderPoint(pos, w, h float64) Point {
	perim := 2*w + 2*h
	pos = math.Mod(pos, perim)
	if pos < 0 {
		pos += perim
	}
	switch {
	case pos < w:
		return Point{pos, 0}
	case pos < w+h:
		return Point{w, pos - w}
	case pos < 2*w+h:
		return Point{w - (pos - w - h), h}
	default:
		return Point{0, h - (pos - 2*w - h)}
	}
}

// bridgeCorners returns the tile corners, in order, that lie strictly
// between from and to walking clockwise around the border — the points a
// border-hugging connector segment must pass through to stay on the edge.
func bridgeCorners(from, to Point, w, h float64) []Point {
	fp := borderPos(from, w, h)
	tp := borderPos(to, w, h)
	perim := 2*w + 2*h
	if tp <= fp {
		tp += perim
	}
	var corners []Point
	for _, cp := range []float64{w, w + h, 2*w + h, perim} {
		if cp > fp && cp < tp {
			corners = append(corners, borderPoint(cp, w, h))
		}
	}
	return corners
}

// closeAlongBorder splices chains whose ends reach the grid border into
// closed rings, connecting each chain's exit point to the next chain's
// entry point walking clockwise around the perimeter, threading through any
// tile corners crossed along the way.
func closeAlongBorder(open [][]Point, w, h float64) [][]Point {
	n := len(open)
	if n == 0 {
		return nil
	}

	type endpoint struct {
		chain int
		start bool
		pos   float64
	}
	ends := make([]endpoint, 0, 2*n)
	for i, c := range open {
		ends = append(ends, endpoint{i, true, borderPos(c[0], w, h)})
		ends = append(ends, endpoint{i, false, borderPos(c[len(c)-1], w, h)})
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i].pos < ends[j].pos })

	// For each chain's exit (its end point), the next entry (a chain start)
	// walking clockwise identifies which chain continues it.
	next := make(map[int]int, n)
	m := len(ends)
	for idx, e := range ends {
		if e.start {
			continue
		}
		for k := 1; k <= m; k++ {
			cand := ends[(idx+k)%m]
			if cand.start {
				next[e.chain] = cand.chain
				break
			}
		}
	}

	var rings [][]Point
	visited := make([]bool, n)
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		ring := append([]Point(nil), open[i]...)
		cur := i
		for {
			nxt, ok := next[cur]
			if !ok {
				break
			}
			ring = append(ring, bridgeCorners(ring[len(ring)-1], open[nxt][0], w, h)...)
			if nxt == i {
				break
			}
			if visited[nxt] {
				break
			}
			ring = append(ring, open[nxt]...)
			visited[nxt] = true
			cur = nxt
		}
		rings = append(rings, ring)
	}
	return rings
}

// fillRegionRings returns every closed ring bounding {p : value(p) >= level}
// over the grid, in grid-index space.
func fillRegionRings(g Grid, level float64) [][]Point {
	closed, open := traceLevel(g, level)
	w, h := float64(g.Width()-1), float64(g.Height()-1)
	rings := append([][]Point(nil), closed...)
	rings = append(rings, closeAlongBorder(open, w, h)...)
	return rings
}

func scaleRings(rings [][]Point, w, h int, extent float64) [][]Point {
	out := make([][]Point, len(rings))
	for i, r := range rings {
		out[i] = scaleChain(r, w, h, extent)
	}
	return out
}

func closeRing(ring []Point) []Point {
	if len(ring) == 0 {
		return ring
	}
	return append(append([]Point(nil), ring...), ring[0])
}

// Isobands computes, for each [lower,upper) range, the filled band
// polygons (outer rings with holes assigned to their smallest container)
// and the label lines tracing each polygon's deeper boundary (§4.H).
func Isobands(g Grid, ranges [][2]float64, extent float64) []Band {
	w, h := g.Width(), g.Height()
	bands := make([]Band, 0, len(ranges))

	for _, r := range ranges {
		lower, upper := r[0], r[1]
		outerRings := fillRegionRings(g, lower)
		holeRings := fillRegionRings(g, upper)

		polygons := make([]Polygon, len(outerRings))
		for i, outer := range outerRings {
			polygons[i] = Polygon{Outer: scaleChain(closeRing(outer), w, h, extent)}
		}

		holeOwner := make([]int, len(holeRings))
		for i := range holeOwner {
			holeOwner[i] = -1
		}
		for hi, hole := range holeRings {
			if len(hole) == 0 {
				continue
			}
			best, bestArea := -1, math.MaxFloat64
			for oi, outer := range outerRings {
				if !ringContainsPoint(outer, hole[0]) {
					continue
				}
				area := math.Abs(signedArea(outer))
				if area < bestArea {
					bestArea, best = area, oi
				}
			}
			holeOwner[hi] = best
		}
		for hi, owner := range holeOwner {
			if owner < 0 {
				continue
			}
			polygons[owner].Holes = append(polygons[owner].Holes, scaleChain(closeRing(holeRings[hi]), w, h, extent))
		}

		var labels []LabeledLine
		labels = append(labels, deepBoundaryLines(outerRings, g, lower, upper, w, h, extent)...)
		labels = append(labels, deepBoundaryLines(holeRings, g, lower, upper, w, h, extent)...)

		bands = append(bands, Band{Lower: lower, Upper: upper, Polygons: polygons, LabelLines: labels})
	}
	return bands
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

// deepBoundaryLines samples the first point of each ring (in grid space),
// keeps only rings whose sample lands closer to lower than to upper, and
// emits the survivors — split at the tile boundary — as label lines.
func deepBoundaryLines(rings [][]Point, g Grid, lower, upper float64, w, h int, extent float64) []LabeledLine {
	var out []LabeledLine
	for _, ring := range rings {
		if len(ring) == 0 {
			continue
		}
		first := ring[0]
		gx := clampInt(int(math.Round(first.X)), 0, w-1)
		gy := clampInt(int(math.Round(first.Y)), 0, h-1)
		sample := g.At(gx, gy)
		if math.IsNaN(sample) || math.IsInf(sample, 0) {
			continue
		}
		if math.Abs(sample-lower) > math.Abs(sample-upper) {
			continue // closer to the shallow edge; not the deep boundary
		}
		scaled := scaleChain(closeRing(ring), w, h, extent)
		for _, line := range SplitAtBoundary(scaled, extent) {
			out = append(out, LabeledLine{Line: line, Depth: math.Abs(lower)})
		}
	}
	return out
}

func isOnBoundary(p Point, extent float64) bool {
	const eps = 1e-6
	return p.X <= eps || p.X >= extent-eps || p.Y <= eps || p.Y >= extent-eps
}

// SplitAtBoundary walks a ring (tile-extent space) and emits the runs of
// consecutive interior points as separate lines, dropping points that sit
// on the tile edge and discarding runs shorter than two points (§4.H).
func SplitAtBoundary(ring []Point, extent float64) []Line {
	var lines []Line
	var current []Point
	for _, p := range ring {
		if isOnBoundary(p, extent) {
			if len(current) >= 2 {
				lines = append(lines, Line{Points: append([]Point(nil), current...)})
			}
			current = nil
			continue
		}
		current = append(current, p)
	}
	if len(current) >= 2 {
		lines = append(lines, Line{Points: append([]Point(nil), current...)})
	}
	return lines
}
