package server

import (
	"net/http"
	"slices"
	"strings"
)

// BasicRouter is the backend's [Router]: a [http.ServeMux] keyed by "METHOD /path"
// patterns, so a known path hit with the wrong method answers 405.
//
// The middleware chain wraps the whole mux, so 404 and 405 responses pass through it too.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	routes      []string
	chain       http.Handler
}

func NewBasicRouter() *BasicRouter {
	mux := http.NewServeMux()
	return &BasicRouter{mux: mux, chain: mux}
}

// Use appends to the middleware chain. It applies to every route, whenever registered.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
	r.chain = r.Apply(r.mux)
}

// Handle serves method + path (wildcards like {id} allowed) with handler.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.register(strings.ToUpper(method)+" "+path, handler)
}

// Handler mounts one handler under every pattern it reports.
func (r *BasicRouter) Handler(handler Handler) {
	for _, pattern := range handler.Routes() {
		r.register(pattern, handler)
	}
}

func (r *BasicRouter) register(pattern string, h http.Handler) {
	r.routes = append(r.routes, pattern)
	r.mux.Handle(pattern, h)
}

// Routes lists the registered patterns in registration order.
func (r *BasicRouter) Routes() []string {
	return slices.Clone(r.routes)
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.chain.ServeHTTP(w, req)
}

// Apply wraps handler so the first middleware passed to Use runs outermost.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(r.middlewares) {
		handler = mw(handler)
	}
	return handler
}
