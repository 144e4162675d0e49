package shutdown

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ========================================
// Middleware Tests
// ========================================

func TestIdleMonitor_MiddlewareTracksRequests(t *testing.T) {
	m := NewIdleMonitor(60*time.Second, []string{"/healthz"}, testLogger())

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if got := atomic.LoadInt64(&m.activeRequests); got != 1 {
			t.Errorf("expected 1 active request during handler, got %d", got)
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := m.Middleware(handler)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/credits", nil))

	if !handlerCalled {
		t.Error("expected handler to be called")
	}
	if got := atomic.LoadInt64(&m.activeRequests); got != 0 {
		t.Errorf("expected 0 active requests after handler, got %d", got)
	}
}

func TestIdleMonitor_MiddlewareIgnoresExcludedPaths(t *testing.T) {
	m := NewIdleMonitor(60*time.Second, []string{"/healthz", "/readyz"}, testLogger())

	before := func() time.Time {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.lastActivity
	}()

	time.Sleep(10 * time.Millisecond)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := atomic.LoadInt64(&m.activeRequests); got != 0 {
			t.Errorf("excluded path should not be tracked, got %d active", got)
		}
	})
	m.Middleware(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	m.mu.RLock()
	after := m.lastActivity
	m.mu.RUnlock()
	if after.After(before) {
		t.Error("excluded path should not update last activity time")
	}
}

func TestIdleMonitor_DisabledIsPassthrough(t *testing.T) {
	m := NewIdleMonitor(0, nil, testLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if got := m.Middleware(handler); got == nil {
		t.Fatal("expected wrapped handler")
	}

	m.Start()
	defer m.Stop()

	select {
	case <-m.ShutdownChan():
		t.Error("disabled monitor should never signal shutdown")
	default:
	}
}

// ========================================
// Shutdown Signal Tests
// ========================================

func TestIdleMonitor_ShutdownChanOpenInitially(t *testing.T) {
	m := NewIdleMonitor(60*time.Second, nil, testLogger())

	select {
	case <-m.ShutdownChan():
		t.Error("shutdown channel should not be closed before timeout")
	default:
	}
}
