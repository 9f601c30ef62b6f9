package httpd

import (
	"context"
	"errors"
	"net/http"

	"i4.energy/across/wifigw/metrics"
)

const DefaultMaxRoutes = 16

var (
	ErrRouteTableFull = errors.New("httpd: route table full")
	ErrNilHandler     = errors.New("httpd: nil handler")
)

// HandlerFunc answers one request through w.
type HandlerFunc func(ctx context.Context, w *Responder, r *Request) error

type route struct {
	path    string
	handler HandlerFunc
}

// Router is a fixed-capacity table of literal paths. The first registered
// exact match wins; there is no pattern or method matching.
type Router struct {
	routes   []route
	notFound HandlerFunc
}

// NewRouter returns a router holding at most size routes.
func NewRouter(size int) *Router {
	if size <= 0 {
		size = DefaultMaxRoutes
	}
	return &Router{
		routes:   make([]route, 0, size),
		notFound: NotFound,
	}
}

// Register appends a route. Duplicates are not detected; the earlier one
// shadows the later.
func (rt *Router) Register(path string, h HandlerFunc) error {
	if h == nil {
		return ErrNilHandler
	}
	if len(rt.routes) == cap(rt.routes) {
		return ErrRouteTableFull
	}
	rt.routes = append(rt.routes, route{path: path, handler: h})
	return nil
}

// SetNotFound replaces the default 404 responder.
func (rt *Router) SetNotFound(h HandlerFunc) {
	if h != nil {
		rt.notFound = h
	}
}

func (rt *Router) Len() int { return len(rt.routes) }

func (rt *Router) Dispatch(ctx context.Context, w *Responder, r *Request) error {
	for _, route := range rt.routes {
		if route.path == r.Path {
			return route.handler(ctx, w, r)
		}
	}
	metrics.RouteMisses.Inc()
	return rt.notFound(ctx, w, r)
}

// NotFound answers with a fixed 404 page.
func NotFound(ctx context.Context, w *Responder, r *Request) error {
	return w.Respond(ctx, r.ConnID, http.StatusNotFound, "text/html", []byte("<h1>404 Not Found</h1>"))
}
