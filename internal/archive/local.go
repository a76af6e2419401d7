package archive

import (
	"fmt"
	"os"
)

// OpenLocal opens a local archive file for positional reads. Used by the
// LRU handle pool when the sector orchestrator has already committed an
// offline archive to disk.
func OpenLocal(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", path, err)
	}
	r, err := open(f)
	if err != nil {
		return nil, fmt.Errorf("archive: %s: %w", path, err)
	}
	return r, nil
}
