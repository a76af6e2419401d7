package tilemath

import (
	"math"
	"testing"
)

func TestReduceToSector(t *testing.T) {
	tests := []struct {
		name    string
		z, x, y int
		want    Sector
		ok      bool
	}{
		{"below sector zoom", 5, 10, 10, Sector{}, false},
		{"at sector zoom", 6, 34, 22, Sector{6, 34, 22}, true},
		{"above sector zoom", 10, 34*16 + 3, 22*16 + 9, Sector{6, 34, 22}, true},
		{"zoom 14 deep child", 14, 34*256, 22*256, Sector{6, 34, 22}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReduceToSector(tt.z, tt.x, tt.y)
			if ok != tt.ok {
				t.Fatalf("ReduceToSector(%d,%d,%d) ok = %v, want %v", tt.z, tt.x, tt.y, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ReduceToSector(%d,%d,%d) = %+v, want %+v", tt.z, tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestSectorDir(t *testing.T) {
	s := Sector{Z: 6, X: 34, Y: 22}
	if got := s.Dir(); got != "6_34_22" {
		t.Errorf("Dir() = %q, want %q", got, "6_34_22")
	}
}

func TestTileBounds_InverseOfXYZ(t *testing.T) {
	for z := 0; z <= 12; z += 3 {
		n := 1 << uint(z)
		for _, pair := range [][2]int{{0, 0}, {n / 2, n / 2}, {n - 1, n - 1}} {
			b := TileBounds(z, pair[0], pair[1])
			if !(b.West < b.East) {
				t.Errorf("z%d (%d,%d): west %v not < east %v", z, pair[0], pair[1], b.West, b.East)
			}
			if !(b.South < b.North) {
				t.Errorf("z%d (%d,%d): south %v not < north %v", z, pair[0], pair[1], b.South, b.North)
			}
			if b.West < -180 || b.East > 180 {
				t.Errorf("z%d (%d,%d): longitude out of range %v..%v", z, pair[0], pair[1], b.West, b.East)
			}
			const webMercatorLimit = 85.0511288
			if b.South < -webMercatorLimit-1e-4 || b.North > webMercatorLimit+1e-4 {
				t.Errorf("z%d (%d,%d): latitude out of range %v..%v", z, pair[0], pair[1], b.South, b.North)
			}
		}
	}
}

func TestTileBounds_AdjacentTilesShareEdges(t *testing.T) {
	b0 := TileBounds(4, 3, 3)
	b1 := TileBounds(4, 4, 3)
	if math.Abs(b0.East-b1.West) > 1e-9 {
		t.Errorf("adjacent tiles don't share edge: %v vs %v", b0.East, b1.West)
	}
}

func TestWrapX(t *testing.T) {
	tests := []struct {
		x, z, want int
	}{
		{-1, 8, 255},
		{256, 8, 0},
		{5, 8, 5},
		{-256, 8, 0},
	}
	for _, tt := range tests {
		if got := WrapX(tt.x, tt.z); got != tt.want {
			t.Errorf("WrapX(%d, %d) = %d, want %d", tt.x, tt.z, got, tt.want)
		}
	}
}

func TestInRange(t *testing.T) {
	if InRange(-1, 8) {
		t.Error("InRange(-1, 8) should be false")
	}
	if InRange(256, 8) {
		t.Error("InRange(256, 8) should be false")
	}
	if !InRange(0, 8) || !InRange(255, 8) {
		t.Error("InRange boundary values should be true")
	}
}
