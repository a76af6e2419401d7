// Package staticassets serves the pre-built style/sprite/glyph files a
// MapLibre client needs alongside the tile endpoints: `/styles/{name}.json`,
// sprite images and JSON, and `/glyphs/{fontstack}/{range}.pbf`. Every file
// is read straight off disk under the configured style root — there is no
// templating or on-the-fly style editing (an explicit Non-goal). Grounded
// on the sector orchestrator's path-traversal guard
// (internal/pathguard.Within, itself grounded on the desktop client's
// download-cache containment check).
package staticassets

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/walkthru/seamap-tiled/internal/apierr"
	"github.com/walkthru/seamap-tiled/internal/pathguard"
)

// Store reads static style assets from a single root directory.
type Store struct {
	root string
}

// New returns a Store rooted at the configured style path.
func New(root string) *Store {
	return &Store{root: root}
}

// contentTypeByExt maps a file extension to its MIME type; unknown
// extensions fall back to octet-stream.
func contentTypeByExt(ext string) string {
	switch ext {
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".pbf":
		return "application/x-protobuf"
	default:
		return "application/octet-stream"
	}
}

// Read returns the bytes of a style asset at a slash-separated relative
// path ("styles/basic.json", "sprites/basic.png", "glyphs/Noto/0-255.pbf"),
// rejecting any path that escapes the store's root after symlink
// resolution.
func (s *Store) Read(relPath string) ([]byte, string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(relPath))
	if err := pathguard.Within(s.root, full); err != nil {
		return nil, "", apierr.Forbidden("path escapes the style root", err)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", apierr.NotFound("static asset not found", err)
		}
		return nil, "", apierr.IO("reading static asset", err)
	}
	return data, contentTypeByExt(filepath.Ext(full)), nil
}

// ServeHTTP writes a static asset response for one already-resolved
// relative path, setting the content-type by extension and a Cache-Control
// header with the given max-age. Handlers translate apierr outcomes to
// status codes via apierr.StatusCode themselves; this helper only writes a
// successful body.
func (s *Store) ServeHTTP(w http.ResponseWriter, relPath string, maxAge time.Duration) error {
	data, contentType, err := s.Read(relPath)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())))
	_, writeErr := w.Write(data)
	return writeErr
}
