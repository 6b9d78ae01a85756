// Package server exposes the status snapshot and live ping streams over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"net-watchdog/internal/config"
	"net-watchdog/internal/state"
	"net-watchdog/internal/stream"
)

type Server struct {
	cfg     *config.Config
	store   *state.Store
	streams *stream.Service
	logger  *slog.Logger
	router  chi.Router
}

func New(cfg *config.Config, store *state.Store, streams *stream.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, store: store, streams: streams, logger: logger}

	r := chi.NewRouter()
	r.Use(Middleware(logger)...)

	r.Get("/status", s.handleStatus)
	r.Get("/ping_stream/{device}", s.handlePingStream)
	r.Get("/devices", s.handleDevices)
	r.Get("/config", s.handleConfig)
	r.Get("/health", s.handleHealth)
	if cfg.Server.Debug {
		r.Mount("/debug", chimiddleware.Profiler())
	}

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handlePingStream(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "device")
	sess, err := s.streams.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, stream.ErrDeviceNotFound) {
			http.Error(w, "Invalid device name", http.StatusNotFound)
			return
		}
		s.logger.Error("open ping stream", "device", name, "error", err)
		http.Error(w, "Unable to start ping", http.StatusInternalServerError)
		return
	}
	defer sess.Close()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("response does not support flushing", "error", err)
	}

	for frame := range sess.All(r.Context()) {
		if _, err := io.WriteString(w, frame); err != nil {
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return
		}
	}
}

type devicesResponse struct {
	Devices      []config.Device     `json:"devices"`
	DeviceGroups map[string][]string `json:"device_groups"`
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	groups := s.cfg.DeviceGroups
	if groups == nil {
		groups = map[string][]string{}
	}
	writeJSON(w, http.StatusOK, devicesResponse{Devices: s.cfg.DeviceList(), DeviceGroups: groups})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg)
}

type healthResponse struct {
	Status        string     `json:"status"`
	Devices       int        `json:"devices"`
	LastCycle     *time.Time `json:"last_cycle"`
	ActiveStreams int        `json:"active_streams"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Devices:       len(s.store.Names()),
		ActiveStreams: s.streams.Active(),
	}
	if last := s.store.LastCycle(); !last.IsZero() {
		resp.LastCycle = &last
	} else {
		resp.Status = "starting"
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
