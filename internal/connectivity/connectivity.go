// Package connectivity is the background connectivity monitor (component
// D): a periodic HEAD probe against a designated upstream, maintaining a
// single racy-by-design atomic boolean the resolver reads without locking.
// Grounded on the desktop client's ratelimit.Handler background-goroutine
// shape, simplified to the spec's single boolean (no retry backoff, no
// per-provider state — just online/offline).
package connectivity

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	probeInterval = 10 * time.Second
	probeTimeout  = 5 * time.Second
)

// Monitor periodically HEAD-probes a URL and exposes the result as an
// atomic boolean. A spurious misread only sends one request down a
// suboptimal path — it is not a correctness hazard, so no locking guards it.
type Monitor struct {
	url    string
	client *http.Client
	online atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a monitor for url. It starts offline until the first probe
// completes; call Start to begin probing.
func New(url string) *Monitor {
	return &Monitor{
		url:    url,
		client: &http.Client{Timeout: probeTimeout},
		done:   make(chan struct{}),
	}
}

// Start launches the background probe loop. It probes immediately, then
// every probeInterval, until Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go func() {
		defer close(m.done)

		m.probe(ctx)
		ticker := time.NewTicker(probeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

// probe issues one HEAD request and updates the online flag. Any outcome
// other than a response status in [200,400) — including timeout, DNS
// failure, or connection error — sets offline.
func (m *Monitor) probe(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, m.url, nil)
	if err != nil {
		m.online.Store(false)
		return
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.online.Store(false)
		return
	}
	defer resp.Body.Close()

	m.online.Store(resp.StatusCode >= 200 && resp.StatusCode < 400)
}

// Online reports the last-known connectivity state, read without locking.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Stop ends the background probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}
