// Package shutdown coordinates graceful process exit: register cleanup
// funcs in start order, they run in reverse when Shutdown is called. The
// package does not watch signals or contexts itself; the caller decides
// when to call Shutdown.
package shutdown

import (
	"context"
	"sync"
	"time"

	"github.com/framecast/videoengine/internal/logging"
)

// Manager runs registered funcs LIFO once shutdown is triggered, each
// bounded by a shared timeout.
type Manager struct {
	mu      sync.Mutex
	funcs   []func(context.Context) error
	timeout time.Duration
	log     *logging.Logger
}

// New constructs a Manager whose Shutdown calls are each bounded by timeout.
func New(timeout time.Duration, log *logging.Logger) *Manager {
	return &Manager{timeout: timeout, log: log.With("shutdown")}
}

// Register adds fn to the shutdown sequence. Funcs run in reverse
// registration order, so a resource registered after one it depends on is
// torn down first.
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, fn)
}

// Shutdown runs every registered func in reverse order against a single
// shared timeout context, logging (not stopping on) individual failures.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	funcs := append([]func(context.Context) error(nil), m.funcs...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			m.log.Warnf("shutdown step %d: %v", i, err)
		}
	}
}

// StopHTTPServer returns a shutdown func for an *http.Server (or anything
// with the same Shutdown signature), identified by name in logs.
func StopHTTPServer(name string, server interface{ Shutdown(context.Context) error }, log *logging.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		log.Infof("stopping %s", name)
		return server.Shutdown(ctx)
	}
}

// CloseResource returns a shutdown func for an io.Closer, identified by
// name in logs.
func CloseResource(name string, closer interface{ Close() error }, log *logging.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		log.Infof("closing %s", name)
		return closer.Close()
	}
}
