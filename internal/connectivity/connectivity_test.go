package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbeOnlineOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(srv.URL)
	m.probe(context.Background())

	if !m.Online() {
		t.Fatal("expected Online() = true after a 200 response")
	}
}

func TestProbeOfflineOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := New(srv.URL)
	m.probe(context.Background())

	if m.Online() {
		t.Fatal("expected Online() = false after a 500 response")
	}
}

func TestProbeOfflineOnUnreachable(t *testing.T) {
	m := New("http://127.0.0.1:1") // nothing listens here
	m.probe(context.Background())

	if m.Online() {
		t.Fatal("expected Online() = false when the upstream is unreachable")
	}
}

func TestStartAndStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(srv.URL)
	m.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for !m.Online() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !m.Online() {
		t.Fatal("expected Online() = true shortly after Start")
	}

	m.Stop()
}
