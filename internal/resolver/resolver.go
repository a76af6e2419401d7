// Package resolver is the tile resolver (component E) — the heart of the
// system: a three-tier fallback (filesystem cache → offline archive →
// online range-fetch) with request coalescing, freshness rules, and
// per-source zoom gating. Grounded on the desktop client's tileserver.Server
// request-handling shape, with coalescing added via golang.org/x/sync/singleflight
// the way the teacher's esri downloader bounds concurrency with
// golang.org/x/sync/semaphore.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/walkthru/seamap-tiled/internal/apierr"
	"github.com/walkthru/seamap-tiled/internal/archive"
	"github.com/walkthru/seamap-tiled/internal/config"
	"github.com/walkthru/seamap-tiled/internal/connectivity"
	"github.com/walkthru/seamap-tiled/internal/lrupool"
	"github.com/walkthru/seamap-tiled/internal/tilecache"
	"github.com/walkthru/seamap-tiled/internal/tilemath"
)

// KindTiles is the tilecache kind for raw upstream source tiles, as opposed
// to the derived kinds (contours, bathymetry, soundings, composite).
const KindTiles = "tiles"

// Tile is a resolved tile payload plus the timestamp it was served with,
// used for derived-tile regeneration decisions (component K).
type Tile struct {
	Bytes   []byte
	ModTime time.Time
}

// Resolver orchestrates the three-tier lookup for one process.
type Resolver struct {
	cfg       *config.Config
	cache     *tilecache.Cache
	localPool *lrupool.Pool[*archive.Reader]
	monitor   *connectivity.Monitor
	group     singleflight.Group

	httpClient *http.Client

	onlineMu      sync.Mutex
	onlineReaders map[string]*archive.Reader
}

// New builds a Resolver over the given config, cache, LRU pool of local
// archive readers, and connectivity monitor.
func New(cfg *config.Config, cache *tilecache.Cache, localPool *lrupool.Pool[*archive.Reader], monitor *connectivity.Monitor) *Resolver {
	return &Resolver{
		cfg:           cfg,
		cache:         cache,
		localPool:     localPool,
		monitor:       monitor,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		onlineReaders: make(map[string]*archive.Reader),
	}
}

// Get resolves one tile request, coalescing concurrent identical requests
// into a single underlying fetch (§4.E, invariant 4). The returned error is
// apierr.Empty for a valid-but-absent tile, an *apierr.Error(NotFound) for
// an unknown source, or a wrapped I/O failure.
func (r *Resolver) Get(ctx context.Context, sourceName string, z, x, y int) (*Tile, error) {
	key := fmt.Sprintf("%s/%d/%d/%d", sourceName, z, x, y)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.resolve(ctx, sourceName, z, x, y)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tile), nil
}

func (r *Resolver) resolve(ctx context.Context, sourceName string, z, x, y int) (*Tile, error) {
	src, ok := r.cfg.Sources[sourceName]
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("unknown source %q", sourceName), nil)
	}
	if z < src.MinZoom || z > src.MaxZoom {
		return nil, apierr.Empty
	}

	var archivePath string
	var offlineModTime time.Time
	var hasOffline bool
	if sector, ok := tilemath.ReduceToSector(z, x, y); ok {
		archivePath = filepath.Join(r.cfg.PMTilesPath, sector.Dir(), src.Output)
		if info, err := os.Stat(archivePath); err == nil {
			offlineModTime = info.ModTime()
			hasOffline = true
		}
	}

	cacheEntry, hasCache := r.cache.Get(KindTiles, sourceName, z, x, y)

	freshCutoff := time.Now().Add(-r.cfg.FreshnessWindow)
	var newest time.Time
	if hasCache && cacheEntry.ModTime.After(newest) {
		newest = cacheEntry.ModTime
	}
	if hasOffline && offlineModTime.After(newest) {
		newest = offlineModTime
	}

	if (hasCache || hasOffline) && newest.After(freshCutoff) {
		// Tie-break: prefer cache (already decoded, cheaper) when equal.
		preferOffline := hasOffline && (!hasCache || offlineModTime.After(cacheEntry.ModTime))
		if preferOffline {
			if tile, err := r.readOffline(archivePath, offlineModTime, z, x, y); err != nil {
				return nil, err
			} else if tile != nil {
				return tile, nil
			}
			// Archive claims to be fresher but has no tile at this
			// coordinate; fall through to cache if present.
		}
		if hasCache {
			data, err := cacheEntry.Open()
			if err != nil {
				return nil, apierr.IO("reading cached tile", err)
			}
			return &Tile{Bytes: data, ModTime: cacheEntry.ModTime}, nil
		}
	}

	if r.monitor.Online() && src.URL != "" {
		return r.fetchOnline(ctx, sourceName, src, z, x, y)
	}

	return nil, apierr.Empty
}

// Peek returns the freshest available timestamp for a tile without fetching
// or decoding its bytes — stat-only, matching the filesystem cache's and
// offline archive's mtime semantics. Used by the derived-tile facade to
// decide whether regeneration is needed before paying for a 3×3 neighbor
// fetch. ok is false if neither tier has the tile; the derived-tile facade
// treats that as no newer source and keeps serving its cached tile.
func (r *Resolver) Peek(sourceName string, z, x, y int) (modTime time.Time, ok bool) {
	src, known := r.cfg.Sources[sourceName]
	if !known || z < src.MinZoom || z > src.MaxZoom {
		return time.Time{}, false
	}

	if sector, inSector := tilemath.ReduceToSector(z, x, y); inSector {
		archivePath := filepath.Join(r.cfg.PMTilesPath, sector.Dir(), src.Output)
		if info, err := os.Stat(archivePath); err == nil {
			modTime, ok = info.ModTime(), true
		}
	}
	if cacheTime, hasCache := r.cache.ModTime(KindTiles, sourceName, z, x, y); hasCache && cacheTime.After(modTime) {
		modTime, ok = cacheTime, true
	}
	return modTime, ok
}

func (r *Resolver) readOffline(archivePath string, modTime time.Time, z, x, y int) (*Tile, error) {
	reader, err := r.localPool.Acquire(archivePath)
	if err != nil {
		return nil, apierr.IO("opening offline archive", err)
	}
	data, err := reader.Get(z, x, y)
	if err != nil {
		return nil, apierr.IO("reading offline archive", err)
	}
	if data == nil {
		return nil, nil
	}
	return &Tile{Bytes: data, ModTime: modTime}, nil
}

func (r *Resolver) fetchOnline(ctx context.Context, sourceName string, src config.Source, z, x, y int) (*Tile, error) {
	reader, err := r.onlineReader(sourceName, src.URL)
	if err != nil {
		return nil, apierr.IO("opening online archive", err)
	}

	data, err := reader.Get(z, x, y)
	if err != nil {
		return nil, apierr.IO("fetching online tile", err)
	}
	if data == nil {
		return nil, apierr.Empty
	}

	if err := r.cache.Put(KindTiles, sourceName, z, x, y, data); err != nil {
		return nil, apierr.IO("writing tile to cache", err)
	}
	return &Tile{Bytes: data, ModTime: time.Now()}, nil
}

// onlineReader returns the cached per-source HTTP archive reader, opening
// one on first use. Caching the header/directory per source avoids a
// directory re-read on every online tile (an Open Question decision, see
// DESIGN.md).
func (r *Resolver) onlineReader(sourceName, url string) (*archive.Reader, error) {
	r.onlineMu.Lock()
	defer r.onlineMu.Unlock()

	if reader, ok := r.onlineReaders[sourceName]; ok {
		return reader, nil
	}

	reader, err := archive.OpenHTTP(url, r.httpClient)
	if err != nil {
		return nil, err
	}
	r.onlineReaders[sourceName] = reader
	return reader, nil
}

// CloseAll releases the local archive pool and all cached online readers,
// matching §5's "a crash must not leak... open file descriptors" for the
// clean-shutdown path.
func (r *Resolver) CloseAll() {
	r.localPool.CloseAll()

	r.onlineMu.Lock()
	defer r.onlineMu.Unlock()
	for _, reader := range r.onlineReaders {
		reader.Close()
	}
	r.onlineReaders = make(map[string]*archive.Reader)
}
