package soundings

import "testing"

type constGrid struct {
	w, h int
	v    float64
}

func (g constGrid) Width() int  { return g.w }
func (g constGrid) Height() int { return g.h }
func (g constGrid) At(x, y int) float64 {
	if x == 3 && y == 3 {
		return nan
	}
	return g.v
}

var nan = func() float64 {
	var z float64
	return z / z
}()

func TestGenerateIsDeterministic(t *testing.T) {
	g := constGrid{w: 16, h: 16, v: -12.34}
	a := Generate(10, 5, 5, g, 4096)
	b := Generate(10, 5, 5, g, 4096)
	if len(a) == 0 {
		t.Fatal("expected at least one sounding")
	}
	if len(a) != len(b) {
		t.Fatalf("len(a)=%d len(b)=%d, want equal across runs", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerateDiffersByTile(t *testing.T) {
	g := constGrid{w: 16, h: 16, v: -5}
	a := Generate(10, 5, 5, g, 4096)
	b := Generate(10, 6, 5, g, 4096)
	if len(a) == 0 || len(b) == 0 {
		t.Fatal("expected soundings from both tiles")
	}
	same := len(a) == len(b)
	if same {
		for i := range a {
			if a[i] != b[i] {
				same = false
				break
			}
		}
	}
	if same {
		t.Fatal("expected different tiles to produce different jitter sequences")
	}
}

func TestGenerateSortedAscendingByDepth(t *testing.T) {
	g := constGrid{w: 16, h: 16, v: -20}
	points := Generate(12, 1, 1, g, 4096)
	for i := 1; i < len(points); i++ {
		if points[i].Depth < points[i-1].Depth {
			t.Fatalf("points not sorted ascending by depth at index %d: %+v", i, points)
		}
	}
}

func TestGenerateSkipsNaNSamples(t *testing.T) {
	g := constGrid{w: 16, h: 16, v: -8}
	points := Generate(14, 2, 2, g, 4096)
	for _, p := range points {
		rx := p.X * (g.w - 1) / 4096
		ry := p.Y * (g.h - 1) / 4096
		if rx == 3 && ry == 3 {
			t.Fatalf("expected the NaN sample to be skipped, got point %+v", p)
		}
	}
}

func TestGenerateDepthIsRoundedAbsolute(t *testing.T) {
	g := constGrid{w: 16, h: 16, v: -12.341}
	points := Generate(10, 9, 9, g, 4096)
	if len(points) == 0 {
		t.Fatal("expected at least one sounding")
	}
	if points[0].Depth != 12.3 {
		t.Fatalf("Depth = %v, want 12.3", points[0].Depth)
	}
}
