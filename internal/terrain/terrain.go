// Package terrain is the terrain decoder and height-tile algebra (component
// G): decoding terrain-RGB rasters into elevation grids, composing a 3×3
// tile neighborhood into one seamless grid, and resampling/aligning it for
// the isoline generator. Grounded on pspoerri-geotiff2pmtiles's
// encode.TerrariumEncoder/ElevationToTerrarium (decode formula) and its
// internal/tile downsample/resample pair (neighbor composition, pixel-center
// algebra), adapted from pixel-painting code into a bare float32 grid since
// this server only ever consumes terrain rasters, never produces them.
package terrain

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/walkthru/seamap-tiled/internal/config"
)

// HeightTile is a width×height grid of elevations in metres above datum.
// NaN marks an unknown sample.
type HeightTile struct {
	Width, Height int
	Data          []float32
}

// NewHeightTile allocates a w×h grid filled with NaN.
func NewHeightTile(w, h int) *HeightTile {
	data := make([]float32, w*h)
	nan := float32(math.NaN())
	for i := range data {
		data[i] = nan
	}
	return &HeightTile{Width: w, Height: h, Data: data}
}

func zeroTile(w, h int) *HeightTile {
	return &HeightTile{Width: w, Height: h, Data: make([]float32, w*h)}
}

// Get returns the sample at (x,y), or NaN if out of bounds.
func (t *HeightTile) Get(x, y int) float32 {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return float32(math.NaN())
	}
	return t.Data[y*t.Width+x]
}

// Set stores a sample at (x,y).
func (t *HeightTile) Set(x, y int, v float32) {
	t.Data[y*t.Width+x] = v
}

func (t *HeightTile) clampedGet(x, y int) float32 {
	if x < 0 {
		x = 0
	}
	if x >= t.Width {
		x = t.Width - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= t.Height {
		y = t.Height - 1
	}
	return t.Get(x, y)
}

func (t *HeightTile) paste(src *HeightTile, ox, oy int) {
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			t.Set(ox+x, oy+y, src.Get(x, y))
		}
	}
}

// Decode converts a terrain-RGB raster into an elevation grid, dispatching
// on the source's encoding. A fully transparent pixel decodes to NaN.
func Decode(img image.Image, enc config.Encoding) (*HeightTile, error) {
	switch enc {
	case config.EncodingTerrarium:
		return decodeWith(img, terrariumElevation), nil
	case config.EncodingMapbox:
		return decodeWith(img, mapboxElevation), nil
	default:
		return nil, fmt.Errorf("terrain: unsupported encoding %q", enc)
	}
}

func decodeWith(img image.Image, elevation func(r, g, b uint8) float64) *HeightTile {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := NewHeightTile(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			if c.A == 0 {
				continue // already NaN from NewHeightTile
			}
			t.Set(x, y, float32(elevation(c.R, c.G, c.B)))
		}
	}
	return t
}

// terrariumElevation implements elevation = R·256 + G + B/256 − 32768.
func terrariumElevation(r, g, b uint8) float64 {
	return float64(r)*256 + float64(g) + float64(b)/256 - 32768
}

// mapboxElevation implements elevation = −10000 + (R·65536 + G·256 + B) · 0.1.
func mapboxElevation(r, g, b uint8) float64 {
	return -10000 + (float64(r)*65536+float64(g)*256+float64(b))*0.1
}

// Neighborhood indexes a 3×3 grid of tiles row-major, north to south, west
// to east. Center is the tile the request is actually for.
const (
	NW = iota
	N
	NE
	W
	Center
	E
	SW
	S
	SE
)

// Combine merges a 3×3 tile neighborhood into one seamless grid three times
// the width and height of the center tile. A nil entry (the date-line wrap
// is the caller's job — tilemath.WrapX; north/south off-sphere neighbors are
// the caller's job too) is treated as an all-zero tile. A nil center returns
// nil, signalling "absent" to the caller.
func Combine(neighbors [9]*HeightTile) *HeightTile {
	center := neighbors[Center]
	if center == nil {
		return nil
	}
	w, h := center.Width, center.Height
	out := NewHeightTile(w*3, h*3)
	for i := 0; i < 9; i++ {
		nb := neighbors[i]
		if nb == nil {
			nb = zeroTile(w, h)
		}
		row, col := i/3, i%3
		out.paste(nb, col*w, row*h)
	}
	return out
}

// Split extracts one of factor² equal sub-regions at (sx,sy), undoing the
// overzoom offset used when the combined neighborhood was sourced from a
// lower zoom than the tile actually being generated.
func (t *HeightTile) Split(factor, sx, sy int) *HeightTile {
	subW, subH := t.Width/factor, t.Height/factor
	out := NewHeightTile(subW, subH)
	for y := 0; y < subH; y++ {
		for x := 0; x < subW; x++ {
			out.Set(x, y, t.Get(sx*subW+x, sy*subH+y))
		}
	}
	return out
}

// SubsamplePixelCenters linearly upsamples the grid by factor n, treating
// samples as pixel centers (not grid corners).
func (t *HeightTile) SubsamplePixelCenters(n int) *HeightTile {
	outW, outH := t.Width*n, t.Height*n
	out := NewHeightTile(outW, outH)
	for y := 0; y < outH; y++ {
		sy := (float64(y)+0.5)/float64(n) - 0.5
		y0 := int(math.Floor(sy))
		fy := sy - float64(y0)
		for x := 0; x < outW; x++ {
			sx := (float64(x)+0.5)/float64(n) - 0.5
			x0 := int(math.Floor(sx))
			fx := sx - float64(x0)
			out.Set(x, y, float32(t.bilinear(x0, y0, fx, fy)))
		}
	}
	return out
}

func (t *HeightTile) bilinear(x0, y0 int, fx, fy float64) float64 {
	v00 := float64(t.clampedGet(x0, y0))
	v10 := float64(t.clampedGet(x0+1, y0))
	v01 := float64(t.clampedGet(x0, y0+1))
	v11 := float64(t.clampedGet(x0+1, y0+1))
	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy
}

// Materialize crops a buffer-pixel margin off every edge, discarding the
// interpolation artifacts a resample step leaves near the boundary.
func (t *HeightTile) Materialize(buffer int) *HeightTile {
	w, h := t.Width-2*buffer, t.Height-2*buffer
	out := NewHeightTile(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, y, t.Get(x+buffer, y+buffer))
		}
	}
	return out
}

// AveragePixelCentersToGrid shifts pixel-centered samples to grid corners by
// averaging each 2×2 neighborhood, producing a (w-1)×(h-1) grid aligned the
// way the isoline generator expects.
func (t *HeightTile) AveragePixelCentersToGrid() *HeightTile {
	w, h := t.Width-1, t.Height-1
	out := NewHeightTile(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := (float64(t.Get(x, y)) + float64(t.Get(x+1, y)) + float64(t.Get(x, y+1)) + float64(t.Get(x+1, y+1))) / 4
			out.Set(x, y, float32(v))
		}
	}
	return out
}

// Resample runs the composed neighborhood through the resolution ladder of
// §4.G: upsample in steps of 2 (trimming the interpolation margin after
// each step) until the grid is at least 100 pixels wide, or trim once if it
// already is; then shift to grid-corner alignment.
func Resample(composed *HeightTile) *HeightTile {
	t := composed
	if t.Width < 100 {
		for t.Width < 100 {
			t = t.SubsamplePixelCenters(2).Materialize(2)
		}
	} else {
		t = t.Materialize(2)
	}
	return t.AveragePixelCentersToGrid().Materialize(1)
}
