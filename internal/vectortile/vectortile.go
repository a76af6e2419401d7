// Package vectortile is the MVT/PBF encoder (component J): a thin wrapper
// over paulmach/orb's encoding/mvt that works directly in already-projected
// tile-extent integer coordinates, since every layer this server emits
// (imagery passthrough aside) is synthesized straight into tile space by
// the isoline and soundings generators rather than reprojected from
// lon/lat. Grounded on other_examples's gotiler.go, the pack's only direct
// user of orb/encoding/mvt.
package vectortile

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
)

// Extent is the coordinate space every layer is encoded against.
const Extent = 4096

// Feature is one layer feature. Geometry must already be expressed in
// extent-space coordinates (orb.Point/LineString/Polygon); Polygon
// geometries hold the outer ring followed by holes.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

// Layer is a named collection of features, encoded in the given order.
type Layer struct {
	Name     string
	Features []Feature
}

// NewPointFeature builds a point feature at an extent-space coordinate.
func NewPointFeature(x, y float64, props map[string]interface{}) Feature {
	return Feature{Geometry: orb.Point{x, y}, Properties: props}
}

// NewLineFeature builds a linestring feature from extent-space points.
func NewLineFeature(points []orb.Point, props map[string]interface{}) Feature {
	ls := make(orb.LineString, len(points))
	copy(ls, points)
	return Feature{Geometry: ls, Properties: props}
}

// NewPolygonFeature builds a polygon feature: outer ring plus holes, both
// in extent-space coordinates.
func NewPolygonFeature(outer []orb.Point, holes [][]orb.Point, props map[string]interface{}) Feature {
	poly := make(orb.Polygon, 0, 1+len(holes))
	poly = append(poly, orb.Ring(append([]orb.Point(nil), outer...)))
	for _, hole := range holes {
		poly = append(poly, orb.Ring(append([]orb.Point(nil), hole...)))
	}
	return Feature{Geometry: poly, Properties: props}
}

// sanitizeProperties drops integer properties outside the signed-32-bit
// range, since downstream MVT consumers reject tiles carrying them.
func sanitizeProperties(in map[string]interface{}) geojson.Properties {
	out := make(geojson.Properties, len(in))
	for k, v := range in {
		switch n := v.(type) {
		case int:
			if n > math.MaxInt32 || n < math.MinInt32 {
				continue
			}
		case int64:
			if n > math.MaxInt32 || n < math.MinInt32 {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// Encode marshals layers into the standard compact protobuf tile format,
// preserving layer order.
func Encode(layers []Layer) ([]byte, error) {
	mvtLayers := make(mvt.Layers, 0, len(layers))
	for _, l := range layers {
		fc := geojson.NewFeatureCollection()
		for _, f := range l.Features {
			gf := geojson.NewFeature(f.Geometry)
			gf.Properties = sanitizeProperties(f.Properties)
			fc.Append(gf)
		}
		layer := mvt.NewLayer(l.Name, fc)
		layer.Version = 2
		layer.Extent = Extent
		mvtLayers = append(mvtLayers, layer)
	}
	return mvtLayers.Marshal()
}

// Decode unmarshals a protobuf tile back into extent-space layers, without
// unprojecting — used by the composite endpoint, which re-merges layers
// from several already-tile-space sources.
func Decode(data []byte) ([]Layer, error) {
	raw, err := mvt.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	layers := make([]Layer, 0, len(raw))
	for _, l := range raw {
		features := make([]Feature, 0, len(l.Features))
		for _, gf := range l.Features {
			features = append(features, Feature{
				Geometry:   gf.Geometry,
				Properties: map[string]interface{}(gf.Properties),
			})
		}
		layers = append(layers, Layer{Name: l.Name, Features: features})
	}
	return layers, nil
}
