package isoline

import (
	"math"
	"testing"
)

type testGrid struct {
	w, h int
	data []float64
}

func (g *testGrid) Width() int  { return g.w }
func (g *testGrid) Height() int { return g.h }
func (g *testGrid) At(x, y int) float64 {
	return g.data[y*g.w+x]
}

func TestContourIntervalForZoom(t *testing.T) {
	cases := map[int]float64{16: 10, 13: 20, 12: 50, 11: 100, 9: 200, 3: 500}
	for z, want := range cases {
		if got := ContourIntervalForZoom(z); got != want {
			t.Fatalf("ContourIntervalForZoom(%d) = %v, want %v", z, got, want)
		}
	}
}

func TestLevelsFromInterval(t *testing.T) {
	levels := LevelsFromInterval(0, 50, 20)
	want := []float64{0, 20, 40}
	if len(levels) != len(want) {
		t.Fatalf("LevelsFromInterval = %v, want %v", levels, want)
	}
	for i, v := range want {
		if levels[i] != v {
			t.Fatalf("LevelsFromInterval[%d] = %v, want %v", i, levels[i], v)
		}
	}
}

func TestContoursFlatGridHasNoCrossing(t *testing.T) {
	g := &testGrid{w: 2, h: 2, data: []float64{0, 0, 0, 0}}
	lines := Contours(g, []float64{5}, 100)
	if len(lines[5]) != 0 {
		t.Fatalf("flat grid below threshold produced %d lines, want 0", len(lines[5]))
	}
}

func TestContoursSingleCellCrossingProducesOpenLine(t *testing.T) {
	// NW=0 NE=10 / SW=0 SE=10: a clean vertical boundary through the cell.
	g := &testGrid{w: 2, h: 2, data: []float64{0, 10, 0, 10}}
	lines := Contours(g, []float64{5}, 100)
	got := lines[5]
	if len(got) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(got))
	}
	pts := got[0].Points
	if len(pts) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(pts))
	}
	for _, p := range pts {
		if math.Abs(p.X-50) > 1e-6 {
			t.Fatalf("point %+v not on the x=50 crossing line", p)
		}
	}
}

func TestContoursClosedRingAroundPeak(t *testing.T) {
	// A single elevated corner in the center of a 3x3 grid of cells; the
	// level-5 contour should close into a diamond entirely within the grid.
	g := &testGrid{w: 3, h: 3, data: []float64{
		0, 0, 0,
		0, 10, 0,
		0, 0, 0,
	}}
	lines := Contours(g, []float64{5}, 200)
	got := lines[5]
	if len(got) != 1 {
		t.Fatalf("len(lines) = %d, want 1 closed ring", len(got))
	}
	pts := got[0].Points
	if len(pts) != 5 {
		t.Fatalf("len(points) = %d, want 5 (4 distinct + closing point)", len(pts))
	}
	if pts[0] != pts[len(pts)-1] {
		t.Fatalf("ring is not closed: first=%+v last=%+v", pts[0], pts[len(pts)-1])
	}
}

func TestSplitAtBoundaryDropsBoundaryOnlyRing(t *testing.T) {
	ring := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	lines := SplitAtBoundary(ring, 10)
	if len(lines) != 0 {
		t.Fatalf("SplitAtBoundary on a border-hugging ring = %d lines, want 0", len(lines))
	}
}

func TestSplitAtBoundaryKeepsInteriorRun(t *testing.T) {
	ring := []Point{{0, 5}, {3, 5}, {5, 5}, {7, 5}, {10, 5}}
	lines := SplitAtBoundary(ring, 10)
	if len(lines) != 1 {
		t.Fatalf("SplitAtBoundary = %d lines, want 1", len(lines))
	}
	if len(lines[0].Points) != 3 {
		t.Fatalf("interior run = %d points, want 3", len(lines[0].Points))
	}
}

// plateauGrid builds a 7x7 grid with a 5x5 plateau of value 20 (x,y in
// [1,5]) and a nested 3x3 plateau of value 40 (x,y in [2,4]), both strictly
// interior so neither contour touches the grid border.
func plateauGrid() *testGrid {
	g := &testGrid{w: 7, h: 7, data: make([]float64, 49)}
	for y := 0; y < 7; y++ {
		for x := 0; x < 7; x++ {
			v := 0.0
			if x >= 1 && x <= 5 && y >= 1 && y <= 5 {
				v = 20
			}
			if x >= 2 && x <= 4 && y >= 2 && y <= 4 {
				v = 40
			}
			g.data[y*7+x] = v
		}
	}
	return g
}

func TestIsobandsAssignsNestedHole(t *testing.T) {
	g := plateauGrid()
	bands := Isobands(g, [][2]float64{{10, 30}}, 4096)
	if len(bands) != 1 {
		t.Fatalf("len(bands) = %d, want 1", len(bands))
	}
	band := bands[0]
	if len(band.Polygons) != 1 {
		t.Fatalf("len(polygons) = %d, want 1", len(band.Polygons))
	}
	poly := band.Polygons[0]
	if len(poly.Outer) < 4 {
		t.Fatalf("outer ring too short: %+v", poly.Outer)
	}
	if poly.Outer[0] != poly.Outer[len(poly.Outer)-1] {
		t.Fatal("outer ring is not closed")
	}
	if len(poly.Holes) != 1 {
		t.Fatalf("len(holes) = %d, want 1", len(poly.Holes))
	}
	if poly.Holes[0][0] != poly.Holes[0][len(poly.Holes[0])-1] {
		t.Fatal("hole ring is not closed")
	}
}

func TestSignedAreaUnitSquare(t *testing.T) {
	square := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	if got := signedArea(square); math.Abs(got-1) > 1e-9 {
		t.Fatalf("signedArea(unit square) = %v, want 1", got)
	}
}
