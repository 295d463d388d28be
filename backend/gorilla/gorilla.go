// Package gorilla binds mounts into a gorilla/mux router.
package gorilla

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/internal/nativehttp"
)

// Backend routes with a mux.Router. Routes match in registration order, so
// catch-all guards added last stay behind every operation.
type Backend struct {
	router   *mux.Router
	fallback *specbind.ErrorHandler
}

var _ specbind.Backend = (*Backend)(nil)

// New creates a Backend on a fresh router.
func New() *Backend {
	return &Backend{router: mux.NewRouter()}
}

// NewWithRouter creates a Backend registering into an existing router or
// subrouter.
func NewWithRouter(r *mux.Router) *Backend {
	return &Backend{router: r}
}

// Name implements specbind.Backend.
func (b *Backend) Name() string { return "gorilla" }

// Router returns the underlying router.
func (b *Backend) Router() *mux.Router { return b.router }

// Route implements specbind.Backend.
func (b *Backend) Route(r specbind.Route) error {
	pattern := Pattern(r.Path)
	h := nativehttp.Handler(r.Endpoint, specbind.ParamNames(r.Path), pathVar)

	route := b.router.Handle(pattern, h)
	if r.Method != "" {
		route = route.Methods(r.Method)
	}
	if r.OperationID != "" {
		route = route.Name(r.OperationID)
	}
	return route.GetError()
}

// Fallback implements specbind.Backend.
func (b *Backend) Fallback(h *specbind.ErrorHandler) {
	b.fallback = h
	b.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nativehttp.Fail(w, h, specbind.HTTPStatusError(http.StatusNotFound))
	})
	b.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nativehttp.Fail(w, h, specbind.HTTPStatusError(http.StatusMethodNotAllowed))
	})
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.fallback == nil {
		b.router.ServeHTTP(w, r)
		return
	}
	nativehttp.Recover(b.fallback, b.router).ServeHTTP(w, r)
}

// Pattern converts a path template into gorilla syntax. Wildcards become a
// ".*" pattern variable.
func Pattern(path string) string {
	return specbind.FormatTemplate(path, func(s specbind.Segment) string {
		if s.Wildcard {
			return "{" + s.Param + ":.*}"
		}
		return "{" + s.Param + "}"
	})
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
