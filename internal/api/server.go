// Package api exposes the stream lifecycle operations over HTTP JSON:
// start, stop, list, and the decoder availability check.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/SokhengDin/eroxii-rstp-stream/internal/registry"
)

// shutdownTimeout bounds how long in-flight API requests may run after
// the context is cancelled.
const shutdownTimeout = 5 * time.Second

// StartFunc launches a relay and returns its viewer URL. The callback
// captures a process-lifetime context so relays outlive the HTTP
// request that created them.
type StartFunc func(sourceURL string, port uint16) (string, error)

// StopFunc stops the relay on a port.
type StopFunc func(port uint16) error

// ListFunc returns the current stream statuses.
type ListFunc func() []registry.Status

// DecoderChecker reports whether the decoder executable is usable.
type DecoderChecker func() bool

// Config holds the listen address and the lifecycle callbacks the
// server fronts.
type Config struct {
	Addr         string
	Start        StartFunc
	Stop         StopFunc
	List         ListFunc
	CheckDecoder DecoderChecker
}

// StreamResponse is the payload returned by start and stop. Recoverable
// lifecycle failures are reported through Success and Message rather
// than HTTP error codes.
type StreamResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	WSURL   string `json:"ws_url,omitempty"`
	Port    uint16 `json:"port,omitempty"`
}

type startRequest struct {
	RTSPURL string `json:"rtsp_url"`
	Port    uint16 `json:"port"`
}

type decoderResponse struct {
	Available bool `json:"available"`
}

// Server is the management HTTP server, the stand-in for the GUI shell
// or any other lifecycle caller.
type Server struct {
	log    *slog.Logger
	config Config
}

// NewServer creates a management Server. If log is nil, slog.Default()
// is used.
func NewServer(config Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:    log.With("component", "api"),
		config: config,
	}
}

// Handler returns the API routes as an http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/streams", s.handleList)
	mux.HandleFunc("POST /api/streams", s.handleStart)
	mux.HandleFunc("DELETE /api/streams/{port}", s.handleStop)
	mux.HandleFunc("GET /api/ffmpeg", s.handleDecoderCheck)
	return corsMiddleware(mux)
}

// Start runs the server until ctx is cancelled. This is the only place
// where a listen failure is fatal to the process.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	s.log.Info("management API listening", "addr", s.config.Addr)

	err := srv.ListenAndServe()
	if ctx.Err() != nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("management API: %w", err)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encoding JSON response", "error", err)
	}
}

func writeError(log *slog.Logger, w http.ResponseWriter, code int, msg string) {
	writeJSON(log, w, code, map[string]string{"error": msg})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.log, w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RTSPURL == "" || req.Port == 0 {
		writeError(s.log, w, http.StatusBadRequest, "rtsp_url and port are required")
		return
	}

	wsURL, err := s.config.Start(req.RTSPURL, req.Port)
	if err != nil {
		if errors.Is(err, registry.ErrEndpointInUse) {
			writeJSON(s.log, w, http.StatusOK, StreamResponse{
				Success: false,
				Message: fmt.Sprintf("Port %d is already in use", req.Port),
			})
			return
		}
		writeError(s.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(s.log, w, http.StatusOK, StreamResponse{
		Success: true,
		Message: fmt.Sprintf("Stream started on port %d", req.Port),
		WSURL:   wsURL,
		Port:    req.Port,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.ParseUint(r.PathValue("port"), 10, 16)
	if err != nil {
		writeError(s.log, w, http.StatusBadRequest, "invalid port")
		return
	}

	if err := s.config.Stop(uint16(port)); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeJSON(s.log, w, http.StatusOK, StreamResponse{
				Success: false,
				Message: fmt.Sprintf("No stream found on port %d", port),
			})
			return
		}
		writeError(s.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(s.log, w, http.StatusOK, StreamResponse{
		Success: true,
		Message: fmt.Sprintf("Stream on port %d stopped", port),
		Port:    uint16(port),
	})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	statuses := s.config.List()
	if statuses == nil {
		statuses = []registry.Status{}
	}
	writeJSON(s.log, w, http.StatusOK, statuses)
}

func (s *Server) handleDecoderCheck(w http.ResponseWriter, _ *http.Request) {
	available := false
	if s.config.CheckDecoder != nil {
		available = s.config.CheckDecoder()
	}
	writeJSON(s.log, w, http.StatusOK, decoderResponse{Available: available})
}
