package httpd

import (
	"context"
	"log/slog"
	"net/http"

	"i4.energy/across/wifigw/ipd"
	"i4.energy/across/wifigw/metrics"
)

// Server answers HTTP requests arriving as frames. It implements
// ipd.Handler.
type Server struct {
	router     *Router
	responder  *Responder
	logger     *slog.Logger
	limits     Limits
	closer     ConnCloser
	badRequest bool
}

type ServerOption func(*Server)

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithLimits(l Limits) ServerOption {
	return func(s *Server) { s.limits = l }
}

// WithAutoClose closes the link after every response.
func WithAutoClose(c ConnCloser) ServerOption {
	return func(s *Server) { s.closer = c }
}

// WithBadRequest answers unparsable requests with 400 instead of dropping
// them.
func WithBadRequest(enabled bool) ServerOption {
	return func(s *Server) { s.badRequest = enabled }
}

func NewServer(router *Router, responder *Responder, opts ...ServerOption) *Server {
	s := &Server{
		router:    router,
		responder: responder,
		logger:    slog.New(slog.DiscardHandler),
		limits:    DefaultLimits,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "httpd")
	return s
}

func (s *Server) ServeFrame(ctx context.Context, f ipd.Frame) {
	defer s.close(ctx, f.ConnID)

	req, err := ParseLimits(f.Payload, s.limits)
	if err != nil {
		metrics.ParseErrors.Inc()
		s.logger.Debug("dropping unparsable request", "conn", f.ConnID, "error", err)
		if s.badRequest {
			if err := s.responder.Error(ctx, f.ConnID, http.StatusBadRequest, ""); err != nil {
				s.logger.Error("failed to answer bad request", "conn", f.ConnID, "error", err)
			}
		}
		return
	}
	req.ConnID = f.ConnID
	req.Truncated = req.Truncated || f.Truncated

	s.logger.Info("request", "conn", f.ConnID, "method", req.Method, "path", req.Path, "truncated", req.Truncated)
	if err := s.router.Dispatch(ctx, s.responder, req); err != nil {
		s.logger.Error("handler failed", "conn", f.ConnID, "path", req.Path, "error", err)
	}
}

func (s *Server) close(ctx context.Context, id int) {
	if s.closer == nil {
		return
	}
	if err := s.closer.CloseConn(ctx, id); err != nil {
		s.logger.Warn("failed to close link", "conn", id, "error", err)
	}
}
