// Package shutdown provides idle monitoring for scale-to-zero deployments.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// IdleMonitor tracks request activity and signals when the server has seen
// no traffic for the configured duration, so hosting platforms that stop
// idle machines can reclaim this one.
type IdleMonitor struct {
	timeout      time.Duration
	logger       *slog.Logger
	excludePaths []string

	activeRequests int64
	mu             sync.RWMutex
	lastActivity   time.Time
	shutdownChan   chan struct{}
	stopChan       chan struct{}
}

// NewIdleMonitor creates a monitor. A timeout of zero disables it.
// excludePaths lists URL prefixes that do not count as activity, such as
// health probes hit by the platform itself.
func NewIdleMonitor(timeout time.Duration, excludePaths []string, logger *slog.Logger) *IdleMonitor {
	return &IdleMonitor{
		timeout:      timeout,
		logger:       logger,
		excludePaths: excludePaths,
		lastActivity: time.Now(),
		shutdownChan: make(chan struct{}),
		stopChan:     make(chan struct{}),
	}
}

// Start begins the monitoring loop. No-op when disabled.
func (m *IdleMonitor) Start() {
	if m.timeout <= 0 {
		return
	}
	m.logger.Info("idle monitoring started", "timeout", m.timeout, "exclude_paths", m.excludePaths)
	go m.run()
}

// Stop terminates the monitoring loop.
func (m *IdleMonitor) Stop() {
	if m.timeout <= 0 {
		return
	}
	close(m.stopChan)
}

// ShutdownChan is closed once the idle timeout has been reached.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownChan
}

// Middleware counts in-flight requests and stamps the last activity time.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if m.timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.excluded(r.URL.Path) {
			atomic.AddInt64(&m.activeRequests, 1)
			m.touch()
			defer func() {
				atomic.AddInt64(&m.activeRequests, -1)
				m.touch()
			}()
		}
		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) excluded(path string) bool {
	for _, prefix := range m.excludePaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	// Poll well below the timeout so shutdown is not overly delayed.
	interval := m.timeout / 6
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			active := atomic.LoadInt64(&m.activeRequests)
			if active > 0 {
				m.touch()
				continue
			}
			m.mu.RLock()
			idle := time.Since(m.lastActivity)
			m.mu.RUnlock()
			if idle >= m.timeout {
				m.logger.Info("idle timeout reached, signaling graceful shutdown",
					"idle_time", idle, "timeout", m.timeout)
				close(m.shutdownChan)
				return
			}
		}
	}
}
