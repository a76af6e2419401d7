package archive

import (
	"fmt"
	"io"
	"net/http"
)

// httpRangeSource satisfies source by issuing a Range request per ReadAt
// call against a single remote URL. The header+directory parse in open()
// happens once per OpenHTTP call, so steady-state tile fetches cost exactly
// one range request each.
type httpRangeSource struct {
	url    string
	client *http.Client
}

func (h *httpRangeSource) ReadAt(p []byte, off int64) (int, error) {
	req, err := http.NewRequest(http.MethodGet, h.url, nil)
	if err != nil {
		return 0, fmt.Errorf("archive: building range request: %w", err)
	}
	last := off + int64(len(p)) - 1
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, last))

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("archive: range request to %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("archive: range request to %s: unexpected status %d", h.url, resp.StatusCode)
	}

	n, err := io.ReadFull(resp.Body, p)
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, fmt.Errorf("archive: reading range response body: %w", err)
	}
	return n, nil
}

func (h *httpRangeSource) Close() error {
	return nil
}

// OpenHTTP opens a remote archive over HTTP range requests. A nil client
// falls back to http.DefaultClient; callers typically share one client per source across requests
// (the resolver's per-source online-reader cache).
func OpenHTTP(url string, client *http.Client) (*Reader, error) {
	if client == nil {
		client = http.DefaultClient
	}
	src := &httpRangeSource{url: url, client: client}
	r, err := open(src)
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", url, err)
	}
	return r, nil
}
