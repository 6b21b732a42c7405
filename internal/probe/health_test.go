package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// These tests shorten healthInterval, so none of them run in parallel.

func shortHealthInterval(t *testing.T) {
	t.Helper()
	old := healthInterval
	healthInterval = 10 * time.Millisecond
	t.Cleanup(func() { healthInterval = old })
}

func healthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"status":"healthy"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWaitHealthy(t *testing.T) {
	shortHealthInterval(t)
	a := healthyServer(t)
	b := healthyServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := WaitHealthy(ctx, a.URL, b.URL); err != nil {
		t.Fatalf("WaitHealthy: %v", err)
	}
}

func TestWaitHealthy_EventuallyHealthy(t *testing.T) {
	shortHealthInterval(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status":"healthy"}`)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := WaitHealthy(ctx, srv.URL); err != nil {
		t.Fatalf("WaitHealthy: %v", err)
	}
	if n := calls.Load(); n < 3 {
		t.Errorf("handler saw %d calls, want at least 3", n)
	}
}

func TestWaitHealthy_Timeout(t *testing.T) {
	shortHealthInterval(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := WaitHealthy(ctx, srv.URL)
	if err == nil {
		t.Fatal("WaitHealthy succeeded against a down service")
	}
	if !strings.Contains(err.Error(), "waiting for") {
		t.Errorf("error %q does not name the waited endpoint", err)
	}
}
