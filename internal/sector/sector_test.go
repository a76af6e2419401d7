package sector

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/walkthru/seamap-tiled/internal/apierr"
	"github.com/walkthru/seamap-tiled/internal/config"
	"github.com/walkthru/seamap-tiled/internal/tilemath"
)

func TestParseID(t *testing.T) {
	id, err := ParseID("6/12/8")
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if id != (tilemath.Sector{Z: 6, X: 12, Y: 8}) {
		t.Fatalf("ParseID = %+v, want {6 12 8}", id)
	}

	for _, bad := range []string{"6/12", "6/12/8/9", "a/b/c", "-1/0/0"} {
		if _, err := ParseID(bad); err == nil {
			t.Fatalf("ParseID(%q) expected an error", bad)
		}
	}
}

func testConfig(t *testing.T, extractor string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.PMTilesPath = t.TempDir()
	cfg.StylePath = t.TempDir()
	cfg.TilesPath = t.TempDir()
	cfg.DerivedPath = t.TempDir()
	cfg.ExtractorPath = extractor
	cfg.Sources = map[string]config.Source{
		"basemap": {
			Name:    "basemap",
			URL:     "https://archives.example.org/basemap.pmtiles",
			Output:  "basemap.pmtiles",
			MinZoom: 0,
			MaxZoom: 14,
			Format:  config.FormatPBF,
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

// writeFakeExtractor writes a shell script standing in for the real
// extraction utility, so the orchestrator's subprocess lifecycle can be
// exercised without any external tooling installed.
func writeFakeExtractor(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-extract.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("writing fake extractor: %v", err)
	}
	return path
}

func waitIdle(t *testing.T, o *Orchestrator) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := o.Status()
		if !st.Active {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("orchestrator never went idle")
	return Status{}
}

func TestEnqueueRejectsMissingExtractor(t *testing.T) {
	cfg := testConfig(t, "this-extractor-does-not-exist-xyz")
	o := New(cfg, zerolog.Nop())

	err := o.Enqueue([]tilemath.Sector{{Z: 6, X: 0, Y: 0}})
	if apierr.StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("StatusCode(err) = %d, want 503", apierr.StatusCode(err))
	}
}

func TestProcessSector_CommitsOnSuccess(t *testing.T) {
	script := writeFakeExtractor(t, `echo "512/1024" 1>&2
echo payload > "$3"
exit 0
`)
	cfg := testConfig(t, script)
	o := New(cfg, zerolog.Nop())

	id := tilemath.Sector{Z: 6, X: 1, Y: 1}
	if err := o.Enqueue([]tilemath.Sector{id}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitIdle(t, o)

	committed := filepath.Join(cfg.PMTilesPath, id.Dir())
	if info, err := os.Stat(committed); err != nil || !info.IsDir() {
		t.Fatalf("expected committed sector directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(committed, "basemap.pmtiles")); err != nil {
		t.Fatalf("expected extracted archive file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.PMTilesPath, "."+id.Dir())); !os.IsNotExist(err) {
		t.Fatal("expected the in-progress directory to be gone after commit")
	}

	sectors, err := o.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sectors) != 1 || sectors[0] != id {
		t.Fatalf("List() = %+v, want [%+v]", sectors, id)
	}
}

func TestProcessSector_FailureRemovesInProgressDir(t *testing.T) {
	script := writeFakeExtractor(t, "exit 1\n")
	cfg := testConfig(t, script)
	o := New(cfg, zerolog.Nop())

	id := tilemath.Sector{Z: 6, X: 2, Y: 2}
	if err := o.Enqueue([]tilemath.Sector{id}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	st := waitIdle(t, o)

	if len(st.Failed) != 1 || st.Failed[0] != id {
		t.Fatalf("Status().Failed = %+v, want [%+v]", st.Failed, id)
	}
	if _, err := os.Stat(filepath.Join(cfg.PMTilesPath, id.Dir())); !os.IsNotExist(err) {
		t.Fatal("expected no committed directory after a failed source")
	}
	if _, err := os.Stat(filepath.Join(cfg.PMTilesPath, "."+id.Dir())); !os.IsNotExist(err) {
		t.Fatal("expected the in-progress directory to be cleaned up")
	}
}

func TestCancel_RemovesInProgressDirAndGoesIdle(t *testing.T) {
	script := writeFakeExtractor(t, "sleep 5\n")
	cfg := testConfig(t, script)
	o := New(cfg, zerolog.Nop())

	id := tilemath.Sector{Z: 6, X: 3, Y: 3}
	if err := o.Enqueue([]tilemath.Sector{id}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(cfg.PMTilesPath, "."+id.Dir())); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	o.Cancel()
	waitIdle(t, o)

	if _, err := os.Stat(filepath.Join(cfg.PMTilesPath, "."+id.Dir())); !os.IsNotExist(err) {
		t.Fatal("expected the in-progress directory to be removed after cancel")
	}
	if st := o.Status(); len(st.Queue) != 0 {
		t.Fatalf("expected an empty queue after cancel, got %+v", st.Queue)
	}
}

func TestDelete(t *testing.T) {
	script := writeFakeExtractor(t, "exit 0\n")
	cfg := testConfig(t, script)
	o := New(cfg, zerolog.Nop())

	id := tilemath.Sector{Z: 6, X: 4, Y: 4}
	dir := filepath.Join(cfg.PMTilesPath, id.Dir())
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	if err := o.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("expected the sector directory to be removed")
	}
}
