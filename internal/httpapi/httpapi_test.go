package httpapi

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkthru/seamap-tiled/internal/archive"
	"github.com/walkthru/seamap-tiled/internal/config"
	"github.com/walkthru/seamap-tiled/internal/connectivity"
	"github.com/walkthru/seamap-tiled/internal/derived"
	"github.com/walkthru/seamap-tiled/internal/lrupool"
	"github.com/walkthru/seamap-tiled/internal/resolver"
	"github.com/walkthru/seamap-tiled/internal/sector"
	"github.com/walkthru/seamap-tiled/internal/staticassets"
	"github.com/walkthru/seamap-tiled/internal/tilecache"
)

func testAPI(t *testing.T) *API {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.PMTilesPath = dir + "/pmtiles"
	cfg.StylePath = dir + "/styles"
	cfg.TilesPath = dir + "/tiles"
	cfg.DerivedPath = dir + "/derived"
	require.NoError(t, cfg.Validate())

	pool, err := lrupool.New(cfg.LRUPoolSize, archive.OpenLocal)
	require.NoError(t, err)

	monitor := connectivity.New(cfg.ConnectivityProbeURL)
	res := resolver.New(cfg, tilecache.New(cfg.TilesPath), pool, monitor)
	der := derived.New(cfg, tilecache.New(cfg.DerivedPath), res)
	orch := sector.New(cfg, zerolog.Nop())
	assets := staticassets.New(cfg.StylePath)
	cache := tilecache.New(cfg.TilesPath)

	return New(cfg, res, der, orch, assets, cache, monitor, zerolog.Nop())
}

func TestHealthzOK(t *testing.T) {
	api := testAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzSetsRequestID(t *testing.T) {
	api := testAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	api.Router().ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestSourceTileJSONUnknownSourceIs404(t *testing.T) {
	api := testAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tiles/nope.json", nil)
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSourceTileJSONKnownSource(t *testing.T) {
	api := testAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tiles/basemap.json", nil)
	api.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRawTileBadCoordsIs400(t *testing.T) {
	api := testAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tiles/basemap/abc/0/0.pbf", nil)
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRawTileAbsentIsNoContent(t *testing.T) {
	api := testAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tiles/basemap/0/0/0.pbf", nil)
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPMTilesListMissingExtractorIsUnavailable(t *testing.T) {
	// List() requires the extraction utility precondition too (spec.md:108),
	// so in the test sandbox (no "pmtiles-extract" on PATH) it 503s rather
	// than returning an empty list.
	api := testAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pmtiles", nil)
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPMTilesEnqueueMissingExtractorIsUnavailable(t *testing.T) {
	api := testAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pmtiles?tile=6/10/20", nil)
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no extraction utility on PATH in test env")
}

func TestPMTilesDeleteMissingTileParamIs400(t *testing.T) {
	api := testAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/pmtiles", nil)
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscodePNGToWebP(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	data, contentType, err := transcodeRaster(config.FormatPNG, config.FormatWebP, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/webp", contentType)
	assert.NotEmpty(t, data)
}

func TestTranscodeUnsupportedPairErrors(t *testing.T) {
	_, _, err := transcodeRaster(config.FormatPBF, config.FormatPNG, nil)
	assert.Error(t, err)
}

func TestParseTileParamParsesMultiple(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/pmtiles?tile=6/1/2,6/3/4", nil)
	ids, err := parseTileParam(req)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, 6, ids[1].Z)
	assert.Equal(t, 3, ids[1].X)
	assert.Equal(t, 4, ids[1].Y)
}

func TestParseTileParamMissingIsValidationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/pmtiles", nil)
	_, err := parseTileParam(req)
	assert.Error(t, err)
}

func TestStyleAssetMissingFileIs404(t *testing.T) {
	api := testAPI(t)
	api.assets = staticassets.New(t.TempDir())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/styles/basic.json", nil)
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no file on disk should 404, not panic or 500")
}
