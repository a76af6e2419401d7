// Package isoline is the isoline/isoband generator (component H):
// marching-squares contouring over a corner-aligned elevation grid, with
// ring/hole classification and tile-boundary handling for label lines.
// Hand-written (no example repo in the pack implements marching squares);
// point-in-ring tests use paulmach/orb's planar.RingContains, the same
// package other_examples/...gotiler.go uses for polygon containment tests,
// and ring areas come from the local shoelace signedArea.
package isoline

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point is a 2D coordinate, either in grid-index space (fractional, between
// corner samples) or tile-extent space, depending on context.
type Point struct{ X, Y float64 }

// Line is an open (or incidentally closed) polyline.
type Line struct {
	Points []Point
}

// Grid supplies corner-aligned elevation samples. NaN marks an unknown
// sample; cells touching a NaN corner are skipped.
type Grid interface {
	Width() int
	Height() int
	At(x, y int) float64
}

// ContourIntervalForZoom is the by-zoom land elevation contour spacing from
// §4.H.
func ContourIntervalForZoom(z int) float64 {
	switch {
	case z >= 14:
		return 10
	case z >= 13:
		return 20
	case z >= 12:
		return 50
	case z >= 10:
		return 100
	case z >= 8:
		return 200
	default:
		return 500
	}
}

// LevelsFromInterval enumerates threshold levels spanning [min,max] spaced
// by interval.
func LevelsFromInterval(min, max, interval float64) []float64 {
	if interval <= 0 {
		return nil
	}
	var levels []float64
	start := math.Ceil(min/interval) * interval
	for v := start; v <= max; v += interval {
		levels = append(levels, v)
	}
	return levels
}

type segment struct{ A, B Point }

// cellEdgePoints returns the linear-interpolated crossing point for each of
// a cell's four edges whose endpoints straddle level, keyed by edge name.
func cellEdgePoints(i, j int, a, b, c, d, level float64) map[string]Point {
	pts := make(map[string]Point, 4)
	if (a >= level) != (b >= level) {
		t := (level - a) / (b - a)
		pts["top"] = Point{float64(i) + t, float64(j)}
	}
	if (b >= level) != (c >= level) {
		t := (level - b) / (c - b)
		pts["right"] = Point{float64(i) + 1, float64(j) + t}
	}
	if (d >= level) != (c >= level) {
		t := (level - d) / (c - d)
		pts["bottom"] = Point{float64(i) + t, float64(j) + 1}
	}
	if (a >= level) != (d >= level) {
		t := (level - a) / (d - a)
		pts["left"] = Point{float64(i), float64(j) + t}
	}
	return pts
}

// orientPair directs a crossing segment so that insideRef (a corner known to
// be on the above-level side) sits on the positive side of the cross
// product — an arbitrary but globally consistent winding convention that
// lets ring assembly and border-closing (isoband.go) tell "inside" from
// "outside" without tracking per-case orientation tables by hand.
func orientPair(p, q, insideRef Point) segment {
	cross := (q.X-p.X)*(insideRef.Y-p.Y) - (q.Y-p.Y)*(insideRef.X-p.X)
	if cross < 0 {
		return segment{q, p}
	}
	return segment{p, q}
}

func anyInsideCorner(inA, inB, inC, inD bool, nw, ne, se, sw Point) Point {
	switch {
	case inA:
		return nw
	case inB:
		return ne
	case inC:
		return se
	default:
		return sw
	}
}

// segmentsForCell runs the marching-squares case analysis for one grid
// cell, returning 0, 1 (simple crossing), or 2 (ambiguous saddle, resolved
// by the average-corner-value rule) oriented segments.
func segmentsForCell(g Grid, i, j int, level float64) []segment {
	a, b, c, d := g.At(i, j), g.At(i+1, j), g.At(i+1, j+1), g.At(i, j+1)
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) || math.IsNaN(float64(c)) || math.IsNaN(float64(d)) {
		return nil
	}

	nw := Point{float64(i), float64(j)}
	ne := Point{float64(i + 1), float64(j)}
	se := Point{float64(i + 1), float64(j + 1)}
	sw := Point{float64(i), float64(j + 1)}

	inA, inB, inC, inD := a >= level, b >= level, c >= level, d >= level
	pts := cellEdgePoints(i, j, a, b, c, d, level)

	var present []string
	for _, name := range []string{"top", "right", "bottom", "left"} {
		if _, ok := pts[name]; ok {
			present = append(present, name)
		}
	}

	switch len(present) {
	case 0:
		return nil
	case 2:
		ref := anyInsideCorner(inA, inB, inC, inD, nw, ne, se, sw)
		return []segment{orientPair(pts[present[0]], pts[present[1]], ref)}
	case 4:
		avg := (a + b + c + d) / 4
		if inA == inC {
			// Diagonal pair NW/SE share a state; NE/SW share the other.
			if avg >= level == inA {
				// The NW/SE state is the one that includes the center ->
				// connected through the middle; isolate NE and SW instead.
				ref := nw
				if !inA {
					ref = ne
				}
				return []segment{
					orientPair(pts["top"], pts["right"], ref),
					orientPair(pts["bottom"], pts["left"], ref),
				}
			}
			ref := nw
			if !inA {
				ref = ne
			}
			return []segment{
				orientPair(pts["top"], pts["left"], ref),
				orientPair(pts["right"], pts["bottom"], ref),
			}
		}
		// NE/SW share a state; NW/SE share the other (the symmetric saddle).
		if avg >= level == inB {
			ref := ne
			if !inB {
				ref = nw
			}
			return []segment{
				orientPair(pts["top"], pts["left"], ref),
				orientPair(pts["right"], pts["bottom"], ref),
			}
		}
		ref := ne
		if !inB {
			ref = nw
		}
		return []segment{
			orientPair(pts["top"], pts["right"], ref),
			orientPair(pts["bottom"], pts["left"], ref),
		}
	default:
		return nil
	}
}

func pointKey(p Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.X, p.Y)
}

// traceLevel runs marching squares over the whole grid at level, then
// stitches the resulting directed segments into maximal chains. A chain
// that loops back to its own start is closed; one that doesn't is open,
// with both ends necessarily on the grid's border.
func traceLevel(g Grid, level float64) (closed [][]Point, open [][]Point) {
	w, h := g.Width(), g.Height()
	var segs []segment
	for j := 0; j < h-1; j++ {
		for i := 0; i < w-1; i++ {
			segs = append(segs, segmentsForCell(g, i, j, level)...)
		}
	}

	byStart := make(map[string][]int, len(segs))
	for idx, s := range segs {
		byStart[pointKey(s.A)] = append(byStart[pointKey(s.A)], idx)
	}

	used := make([]bool, len(segs))
	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		chain := []Point{segs[i].A, segs[i].B}
		for {
			last := chain[len(chain)-1]
			next := -1
			for _, cand := range byStart[pointKey(last)] {
				if !used[cand] {
					next = cand
					break
				}
			}
			if next == -1 {
				break
			}
			used[next] = true
			chain = append(chain, segs[next].B)
		}
		if len(chain) > 2 && pointKey(chain[0]) == pointKey(chain[len(chain)-1]) {
			closed = append(closed, chain[:len(chain)-1])
		} else {
			open = append(open, chain)
		}
	}
	return closed, open
}

func scalePoint(p Point, w, h int, extent float64) Point {
	return Point{
		X: p.X / float64(w-1) * extent,
		Y: p.Y / float64(h-1) * extent,
	}
}

func scaleChain(chain []Point, w, h int, extent float64) []Point {
	out := make([]Point, len(chain))
	for i, p := range chain {
		out[i] = scalePoint(p, w, h, extent)
	}
	return out
}

// Contours computes, for each threshold level, the set of polylines
// tracing it (§4.H). Chains that reach the grid's border stay open — a
// depth contour line is expected to terminate at the tile edge, picked up
// by the neighboring tile's own trace.
func Contours(g Grid, levels []float64, extent float64) map[float64][]Line {
	w, h := g.Width(), g.Height()
	result := make(map[float64][]Line, len(levels))
	for _, level := range levels {
		closed, open := traceLevel(g, level)
		var lines []Line
		for _, chain := range closed {
			ring := append(append([]Point(nil), chain...), chain[0])
			lines = append(lines, Line{Points: scaleChain(ring, w, h, extent)})
		}
		for _, chain := range open {
			lines = append(lines, Line{Points: scaleChain(chain, w, h, extent)})
		}
		result[level] = lines
	}
	return result
}

// ringContainsPoint reports whether ring (grid-space) contains point
// (grid-space), via paulmach/orb's planar point-in-ring test.
func ringContainsPoint(ring []Point, p Point) bool {
	orbRing := make(orb.Ring, len(ring))
	for i, pt := range ring {
		orbRing[i] = orb.Point{pt.X, pt.Y}
	}
	return planar.RingContains(orbRing, orb.Point{p.X, p.Y})
}

// signedArea is the shoelace-formula signed area of a closed ring.
func signedArea(ring []Point) float64 {
	var sum float64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return sum / 2
}
