// Package registry tracks active relays by listen endpoint, providing
// the start/stop/list lifecycle operations used by the management API.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Lifecycle errors reported to callers. Both are recoverable and leave
// the registry unchanged.
var (
	ErrEndpointInUse = errors.New("endpoint already in use")
	ErrNotFound      = errors.New("no stream on endpoint")
)

// Runner launches the relay for one endpoint and blocks until it
// exits. The production Runner builds an ffmpeg adapter and a relay;
// tests substitute stubs.
type Runner interface {
	Run(ctx context.Context, sourceURL string, port uint16) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, sourceURL string, port uint16) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, sourceURL string, port uint16) error {
	return f(ctx, sourceURL, port)
}

// Status describes one active stream for list responses.
type Status struct {
	Port      uint16 `json:"port"`
	SourceURL string `json:"rtsp_url"`
	ViewerURL string `json:"ws_url"`
	Active    bool   `json:"active"`
}

type entry struct {
	sourceURL string
	cancel    context.CancelFunc
}

// Registry maps listen endpoints to running relays. At most one entry
// exists per endpoint; entries remove themselves when their relay task
// exits, so presence in the table is the liveness signal.
type Registry struct {
	log    *slog.Logger
	runner Runner

	mu      sync.RWMutex
	streams map[uint16]*entry
	tasks   sync.WaitGroup
}

// NewRegistry creates a Registry that launches relays through runner.
// If log is nil, slog.Default() is used.
func NewRegistry(runner Runner, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log.With("component", "registry"),
		runner:  runner,
		streams: make(map[uint16]*entry),
	}
}

// ViewerURL returns the address viewers connect to for a port.
func ViewerURL(port uint16) string {
	return fmt.Sprintf("ws://127.0.0.1:%d", port)
}

// Start registers a relay on port for sourceURL and launches it
// asynchronously, returning the viewer URL immediately. The check for
// an existing entry and the insert happen under one lock, so
// concurrent Start calls for the same port yield exactly one success.
// The launched task removes its own entry on exit, normal or not;
// failures after launch (such as a bind failure) surface as the
// entry's absence from List.
func (r *Registry) Start(ctx context.Context, sourceURL string, port uint16) (string, error) {
	r.mu.Lock()
	if _, ok := r.streams[port]; ok {
		r.mu.Unlock()
		return "", fmt.Errorf("port %d: %w", port, ErrEndpointInUse)
	}

	relayCtx, cancel := context.WithCancel(ctx)
	e := &entry{sourceURL: sourceURL, cancel: cancel}
	r.streams[port] = e
	r.mu.Unlock()

	r.log.Info("stream starting", "port", port, "source", sourceURL)

	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()
		defer cancel()
		if err := r.runner.Run(relayCtx, sourceURL, port); err != nil {
			r.log.Error("relay exited with error", "port", port, "error", err)
		}
		r.remove(port, e)
	}()

	return ViewerURL(port), nil
}

// remove deletes the entry for port only if it is still e, so a relay
// unwinding after Stop cannot evict a successor started on the same
// port.
func (r *Registry) remove(port uint16, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.streams[port]; ok && cur == e {
		delete(r.streams, port)
		r.log.Info("stream removed", "port", port)
	}
}

// Stop removes the entry for port and fires its shutdown signal. A
// port with no entry, including one already stopped, returns
// ErrNotFound; repeated Stop calls are safe.
func (r *Registry) Stop(port uint16) error {
	r.mu.Lock()
	e, ok := r.streams[port]
	if ok {
		delete(r.streams, port)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("port %d: %w", port, ErrNotFound)
	}

	e.cancel()
	r.log.Info("stream stopped", "port", port)
	return nil
}

// StopAll fires the shutdown signal of every active relay and clears
// the table.
func (r *Registry) StopAll() {
	r.mu.Lock()
	entries := r.streams
	r.streams = make(map[uint16]*entry)
	r.mu.Unlock()

	for port, e := range entries {
		e.cancel()
		r.log.Info("stream stopped", "port", port)
	}
}

// Wait blocks until every relay task launched by Start has exited.
// Call after StopAll so shutdown does not complete while decoder
// teardown is still in flight.
func (r *Registry) Wait() {
	r.tasks.Wait()
}

// List returns a snapshot of every active stream, ordered by port.
func (r *Registry) List() []Status {
	r.mu.RLock()
	statuses := make([]Status, 0, len(r.streams))
	for port, e := range r.streams {
		statuses = append(statuses, Status{
			Port:      port,
			SourceURL: e.sourceURL,
			ViewerURL: ViewerURL(port),
			Active:    true,
		})
	}
	r.mu.RUnlock()

	slices.SortFunc(statuses, func(a, b Status) int {
		return int(a.Port) - int(b.Port)
	})
	return statuses
}
