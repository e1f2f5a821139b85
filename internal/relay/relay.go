package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// subprotocol is the optional token echoed back to clients that request
// it during the WebSocket handshake. Browser-side MPEG1 players offer
// it; clients that don't get the default handshake.
const subprotocol = "jsmpeg"

// Source produces the byte stream fanned out to viewers. The ffmpeg
// adapter is the production implementation; tests substitute stubs.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, sink Sink) error

// Run calls f.
func (f SourceFunc) Run(ctx context.Context, sink Sink) error { return f(ctx, sink) }

// Config describes one relay: the source it transcodes and the local
// port its viewers connect to.
type Config struct {
	SourceURL        string
	Port             uint16
	Source           Source
	SubscriberBuffer int
	Log              *slog.Logger
}

// Relay owns one endpoint's listener, fan-out hub, and decoder source.
// It is created per start request and lives until its context is
// cancelled or the listener fails.
type Relay struct {
	log      *slog.Logger
	cfg      Config
	hub      *Hub
	upgrader websocket.Upgrader
}

// New creates a Relay from cfg. If cfg.Log is nil, slog.Default() is
// used.
func New(cfg Config) *Relay {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "relay", "port", cfg.Port)

	depth := cfg.SubscriberBuffer
	if depth <= 0 {
		depth = 100
	}

	return &Relay{
		log: log,
		cfg: cfg,
		hub: NewHub(depth, log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 32 * 1024,
			Subprotocols:    []string{subprotocol},
			// Viewers are local browser clients; origin enforcement
			// belongs to whatever fronts this on a real network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Hub returns the relay's fan-out hub.
func (r *Relay) Hub() *Hub { return r.hub }

// Run binds the viewer endpoint and serves connections until ctx is
// cancelled. The decoder source runs on its own goroutine so its
// blocking reads never stall connection acceptance; its exit, normal or
// not, leaves the listener serving. A bind failure is returned
// immediately. On return the decoder has been stopped and every
// viewer's subscription closed.
func (r *Relay) Run(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", r.cfg.Port)
	ln, err := listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	r.log.Info("relay listening", "addr", addr, "source", r.cfg.SourceURL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the hub is what unwinds connected viewers: their
	// subscription channels close, the write halves end, and the
	// handlers shut their sockets.
	defer r.hub.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := r.cfg.Source.Run(ctx, r.hub); err != nil {
			r.log.Error("decoder source failed", "error", err)
		}
	}()

	srv := &http.Server{Handler: http.HandlerFunc(r.handleViewer)}
	stop := context.AfterFunc(ctx, func() { srv.Close() })
	defer stop()

	serveErr := srv.Serve(ln)
	cancelled := ctx.Err() != nil

	cancel()
	wg.Wait()

	if cancelled || errors.Is(serveErr, http.ErrServerClosed) {
		r.log.Info("relay stopped")
		return nil
	}
	return fmt.Errorf("serve %s: %w", addr, serveErr)
}

// handleViewer upgrades an inbound connection and runs its handler.
// Upgrade failures are local to the connection.
func (r *Relay) handleViewer(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", "remote", req.RemoteAddr, "error", err)
		return
	}

	sub := r.hub.Subscribe()
	v := &viewer{
		log:          r.log.With("viewer", sub.ID(), "remote", conn.RemoteAddr().String()),
		conn:         conn,
		sub:          sub,
		writeTimeout: defaultWriteTimeout,
	}
	v.run()
}
