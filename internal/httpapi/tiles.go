package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"

	"github.com/HugoSmits86/nativewebp"
	"github.com/go-chi/chi/v5"
	"golang.org/x/image/webp"

	"github.com/walkthru/seamap-tiled/internal/apierr"
	"github.com/walkthru/seamap-tiled/internal/config"
)

func (a *API) tileTemplate(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, path)
}

func (a *API) handleSourceTileJSON(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	src, ok := a.cfg.Sources[name]
	if !ok {
		a.writeError(w, r, apierr.NotFound(fmt.Sprintf("unknown source %q", name), nil))
		return
	}
	doc := tileJSON{
		TileJSON:    "3.0.0",
		Name:        src.Name,
		Tiles:       []string{a.tileTemplate(r, fmt.Sprintf("/tiles/%s/{z}/{x}/{y}.%s", src.Name, src.Format))},
		Scheme:      "xyz",
		MinZoom:     src.MinZoom,
		MaxZoom:     src.MaxZoom,
		Attribution: src.Attribution,
		Format:      string(src.Format),
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(tileJSONMaxAge.Seconds())))
	writeJSON(w, doc)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleRawTile serves GET /tiles/{source}/{z}/{x}/{y}.{ext} (§6), transcoding
// between PNG and WebP when the requested extension doesn't match the
// source's native raster format. Vector sources only ever serve .pbf; a
// mismatched extension there is a validation error, not a transcode target.
func (a *API) handleRawTile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	z, x, y, err := parseCoords(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ext := chi.URLParam(r, "ext")

	src, ok := a.cfg.Sources[name]
	if !ok {
		a.writeError(w, r, apierr.NotFound(fmt.Sprintf("unknown source %q", name), nil))
		return
	}

	tile, err := a.resolver.Get(r.Context(), name, z, x, y)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	data := tile.Bytes
	contentType := src.ContentType()
	if requestedFormat := config.Format(ext); requestedFormat != src.Format {
		transcoded, ct, err := transcodeRaster(src.Format, requestedFormat, data)
		if err != nil {
			a.writeError(w, r, apierr.Validation(fmt.Sprintf("cannot serve %q as .%s", name, ext), err))
			return
		}
		data, contentType = transcoded, ct
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(tileMaxAge.Seconds())))
	w.Write(data)
}

// transcodeRaster re-encodes a raster tile's bytes between PNG and WebP on
// request. Any other pair, including a vector (pbf) source, returns an error.
func transcodeRaster(from, to config.Format, data []byte) ([]byte, string, error) {
	switch {
	case from == config.FormatPNG && to == config.FormatWebP:
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("decoding source png: %w", err)
		}
		var buf bytes.Buffer
		if err := nativewebp.Encode(&buf, img, nil); err != nil {
			return nil, "", fmt.Errorf("encoding webp: %w", err)
		}
		return buf.Bytes(), to.ContentType(), nil
	case from == config.FormatWebP && to == config.FormatPNG:
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("decoding source webp: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encoding png: %w", err)
		}
		return buf.Bytes(), to.ContentType(), nil
	default:
		return nil, "", fmt.Errorf("unsupported transcode %s -> %s", from, to)
	}
}

func parseCoords(r *http.Request) (z, x, y int, err error) {
	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil || z < 0 || x < 0 || y < 0 {
		return 0, 0, 0, apierr.Validation("tile coordinates must be non-negative integers", errors.Join(errZ, errX, errY))
	}
	return z, x, y, nil
}
