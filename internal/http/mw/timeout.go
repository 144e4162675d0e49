package mw

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// TimeoutConfig selects a request deadline by path.
type TimeoutConfig struct {
	// Default deadline for most endpoints.
	Default time.Duration
	// Extended deadline for paths matching ExtendedPatterns, used for
	// AI chat calls that block on provider inference.
	Extended         time.Duration
	ExtendedPatterns []string
}

func (c TimeoutConfig) deadlineFor(path string) time.Duration {
	for _, pattern := range c.ExtendedPatterns {
		if strings.Contains(path, pattern) {
			return c.Extended
		}
	}
	return c.Default
}

// handlerPanic carries a recovered panic out of the handler goroutine
// so the Recoverer middleware above us still sees the original stack.
type handlerPanic struct {
	value any
	stack []byte
}

// Timeout enforces per-path request deadlines, answering 504 when the
// handler does not finish in time.
func Timeout(cfg TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.deadlineFor(r.URL.Path))
			defer cancel()

			done := make(chan struct{})
			panicked := make(chan handlerPanic, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- handlerPanic{value: p, stack: debug.Stack()}
					}
				}()
				next.ServeHTTP(w, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case p := <-panicked:
				panic(fmt.Sprintf("%v\n\noriginal stack:\n%s", p.value, p.stack))
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					w.WriteHeader(http.StatusGatewayTimeout)
				}
			}
		})
	}
}
