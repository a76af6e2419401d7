package tilecache

import (
	"os"
	"testing"
)

func TestPutAndGet(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	data := []byte{1, 2, 3, 4}
	if err := c.Put("tiles", "basemap", 8, 132, 88, data); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, ok := c.Get("tiles", "basemap", 8, 132, 88)
	if !ok {
		t.Fatal("Get returned ok=false for a tile just put")
	}

	got, err := entry.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(got) != len(data) {
		t.Fatalf("got %d bytes, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], data[i])
		}
	}
}

func TestGetMissing(t *testing.T) {
	c := New(t.TempDir())
	if _, ok := c.Get("tiles", "basemap", 8, 132, 88); ok {
		t.Fatal("Get returned ok=true for a tile never written")
	}
}

func TestModTimeDoesNotReadBody(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	if err := c.Put("contours", "gebco", 10, 500, 300, []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mt, ok := c.ModTime("contours", "gebco", 10, 500, 300)
	if !ok {
		t.Fatal("ModTime returned ok=false")
	}
	if mt.IsZero() {
		t.Fatal("ModTime returned zero time for an existing file")
	}
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	_ = c.Put("tiles", "basemap", 1, 0, 0, []byte("abcd"))
	_ = c.Put("tiles", "seamap", 1, 0, 0, []byte("xy"))

	entries, size, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if entries != 2 {
		t.Fatalf("entries = %d, want 2", entries)
	}
	if size != 6 {
		t.Fatalf("size = %d, want 6", size)
	}
}

func TestStatsOnMissingRoot(t *testing.T) {
	c := New(os.TempDir() + "/seamap-tiled-never-created")
	entries, size, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats on missing root should not error, got: %v", err)
	}
	if entries != 0 || size != 0 {
		t.Fatalf("expected zero stats, got entries=%d size=%d", entries, size)
	}
}
