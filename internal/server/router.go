package server

import (
	"context"
	"strings"

	"github.com/rocha19/userserver/internal/wire"
)

type route struct {
	prefix  string
	handler HandlerFunc
}

// Router picks a handler by literal, case-sensitive prefix of the raw
// request text. Routes are tried in registration order; the first match wins.
type Router struct {
	routes   []route
	notFound HandlerFunc
}

func NewRouter() *Router {
	return &Router{notFound: NotFound}
}

// NewRawUserRouter registers the user routes. "GET /user/" must precede
// "GET /users".
func NewRawUserRouter(h *UserHandlers) *Router {
	r := NewRouter()
	r.Handle("GET /user/", h.GetOne)
	r.Handle("GET /users", h.GetAll)
	r.Handle("POST /user", h.Create)
	r.Handle("PUT /user/", h.Update)
	r.Handle("DELETE /user/", h.Delete)
	return r
}

func (r *Router) Handle(prefix string, handler HandlerFunc) {
	r.routes = append(r.routes, route{prefix: prefix, handler: handler})
}

// Match returns the handler for the raw request text.
func (r *Router) Match(raw string) HandlerFunc {
	for _, rt := range r.routes {
		if strings.HasPrefix(raw, rt.prefix) {
			return rt.handler
		}
	}
	return r.notFound
}

func (r *Router) Dispatch(ctx context.Context, req wire.Request) wire.Response {
	return r.Match(req.Raw)(ctx, req)
}
