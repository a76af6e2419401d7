package vectortile

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	layers := []Layer{
		{
			Name: "soundings",
			Features: []Feature{
				NewPointFeature(100, 200, map[string]interface{}{"depth": 12.3}),
			},
		},
		{
			Name: "contours",
			Features: []Feature{
				NewLineFeature([]orb.Point{{0, 0}, {4096, 4096}}, map[string]interface{}{"depth": 10}),
			},
		},
		{
			Name: "bathymetry",
			Features: []Feature{
				NewPolygonFeature(
					[]orb.Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}},
					[][]orb.Point{{{25, 25}, {75, 25}, {75, 75}, {25, 75}, {25, 25}}},
					map[string]interface{}{"lower": -10, "upper": -5},
				),
			},
		},
	}

	data, err := Encode(layers)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Encode produced no bytes")
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != len(layers) {
		t.Fatalf("len(decoded) = %d, want %d", len(decoded), len(layers))
	}
	for i, l := range layers {
		if decoded[i].Name != l.Name {
			t.Fatalf("layer order not preserved: decoded[%d].Name = %q, want %q", i, decoded[i].Name, l.Name)
		}
	}
}

func TestSanitizePropertiesDropsOutOfRangeInts(t *testing.T) {
	props := map[string]interface{}{
		"ok":       int64(42),
		"too_big":  int64(math.MaxInt32) + 1,
		"too_small": int64(math.MinInt32) - 1,
	}
	out := sanitizeProperties(props)
	if _, ok := out["ok"]; !ok {
		t.Fatal("expected in-range property to survive")
	}
	if _, ok := out["too_big"]; ok {
		t.Fatal("expected an out-of-range positive int32 to be dropped")
	}
	if _, ok := out["too_small"]; ok {
		t.Fatal("expected an out-of-range negative int32 to be dropped")
	}
}
