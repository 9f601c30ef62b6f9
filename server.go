package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"i4.energy/across/wifigw/httpd"
	"i4.energy/across/wifigw/ssdp"
)

// Server holds the request handlers: the routes served through the modem
// and the host-side admin endpoints.
type Server struct {
	Logger *slog.Logger
	Switch Switch
	// Discovery is nil when discovery is disabled
	Discovery *ssdp.Responder
	// Snapshot returns the latest gateway state
	Snapshot func() Snapshot

	adminOnce sync.Once
	admin     *http.ServeMux
}

type route struct {
	path    string
	handler httpd.HandlerFunc
}

// Routes registers the modem-side routes.
func (s *Server) Routes(rt *httpd.Router) error {
	routes := []route{
		{"/", s.handleIndex},
		{"/status", s.handleStatus},
		{"/on", s.handleOn},
		{"/off", s.handleOff},
		{"/switch", s.handleSwitch},
	}
	if s.Discovery != nil {
		routes = append(routes, route{"/setup.xml", s.handleSetup})
	}

	for _, r := range routes {
		if err := rt.Register(r.path, r.handler); err != nil {
			return fmt.Errorf("register %s: %w", r.path, err)
		}
	}
	return nil
}

// ServeHTTP implements the http.Handler interface for the host-side admin
// endpoints
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.adminOnce.Do(func() {
		s.admin = http.NewServeMux()
		s.admin.HandleFunc("GET /status", s.adminStatus)
		s.admin.Handle("GET /metrics", promhttp.Handler())
	})
	s.admin.ServeHTTP(w, r)
}

func (s *Server) adminStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		s.Logger.Error("Failed to encode status", "error", err)
	}
}

func (s *Server) snapshot() Snapshot {
	snap := Snapshot{}
	if s.Snapshot != nil {
		snap = s.Snapshot()
	}
	snap.On = s.Switch.State()
	return snap
}

func (s *Server) handleIndex(ctx context.Context, w *httpd.Responder, r *httpd.Request) error {
	state := "off"
	if s.Switch.State() {
		state = "on"
	}
	page := fmt.Sprintf("<html><body><h1>Switch is %s</h1>"+
		"<p><a href=\"/on\">on</a> <a href=\"/off\">off</a></p></body></html>", state)
	return w.Respond(ctx, r.ConnID, http.StatusOK, "text/html", []byte(page))
}

func (s *Server) handleStatus(ctx context.Context, w *httpd.Responder, r *httpd.Request) error {
	return w.RespondJSON(ctx, r.ConnID, http.StatusOK, s.snapshot())
}

func (s *Server) handleOn(ctx context.Context, w *httpd.Responder, r *httpd.Request) error {
	return s.set(ctx, w, r, true)
}

func (s *Server) handleOff(ctx context.Context, w *httpd.Responder, r *httpd.Request) error {
	return s.set(ctx, w, r, false)
}

func (s *Server) set(ctx context.Context, w *httpd.Responder, r *httpd.Request, on bool) error {
	if err := s.Switch.Set(ctx, on); err != nil {
		s.Logger.Error("Failed to set switch", "error", err, "on", on)
		return w.Error(ctx, r.ConnID, http.StatusInternalServerError, err.Error())
	}
	state := "off"
	if on {
		state = "on"
	}
	return w.Respond(ctx, r.ConnID, http.StatusOK, "text/html", []byte("<h1>"+state+"</h1>"))
}

// handleSwitch processes POST requests carrying {"on": bool}
func (s *Server) handleSwitch(ctx context.Context, w *httpd.Responder, r *httpd.Request) error {
	if r.Method != http.MethodPost {
		return w.Error(ctx, r.ConnID, http.StatusMethodNotAllowed, "")
	}
	if r.Truncated {
		return w.Error(ctx, r.ConnID, http.StatusRequestEntityTooLarge, "request too large")
	}

	type SwitchRequest struct {
		On *bool `json:"on"`
	}

	var req SwitchRequest
	if err := json.Unmarshal([]byte(r.Body()), &req); err != nil {
		return w.Error(ctx, r.ConnID, http.StatusBadRequest, err.Error())
	}
	if req.On == nil {
		return w.Error(ctx, r.ConnID, http.StatusBadRequest, "'on' field is required")
	}

	if err := s.Switch.Set(ctx, *req.On); err != nil {
		s.Logger.Error("Failed to set switch", "error", err, "on", *req.On)
		return w.Error(ctx, r.ConnID, http.StatusInternalServerError, err.Error())
	}

	s.Logger.Info("Switch set", "conn", r.ConnID, "on", *req.On)
	return w.RespondJSON(ctx, r.ConnID, http.StatusOK, map[string]bool{"on": *req.On})
}

func (s *Server) handleSetup(ctx context.Context, w *httpd.Responder, r *httpd.Request) error {
	body, err := s.Discovery.Description()
	if err != nil {
		return w.Error(ctx, r.ConnID, http.StatusInternalServerError, err.Error())
	}
	return w.Respond(ctx, r.ConnID, http.StatusOK, "text/xml", body)
}
