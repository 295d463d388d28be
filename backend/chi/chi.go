// Package chi binds mounts into a go-chi router.
package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/internal/nativehttp"
)

// Backend routes with a chi.Router. Wildcard segments become chi's "*".
type Backend struct {
	router   chi.Router
	fallback *specbind.ErrorHandler
}

var _ specbind.Backend = (*Backend)(nil)

// New creates a Backend on a fresh router. Client addresses honor
// X-Forwarded-For and X-Real-IP.
func New() *Backend {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	return &Backend{router: r}
}

// NewWithRouter creates a Backend registering into an existing router, so
// mounts can share it with native routes and middleware.
func NewWithRouter(r chi.Router) *Backend {
	return &Backend{router: r}
}

// Name implements specbind.Backend.
func (b *Backend) Name() string { return "chi" }

// Router returns the underlying router.
func (b *Backend) Router() chi.Router { return b.router }

// Route implements specbind.Backend.
func (b *Backend) Route(r specbind.Route) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("chi: %v", rec)
		}
	}()

	wildcard := ""
	pattern := specbind.FormatTemplate(r.Path, func(s specbind.Segment) string {
		if s.Wildcard {
			wildcard = s.Param
			return "*"
		}
		return "{" + s.Param + "}"
	})

	param := func(req *http.Request, name string) string {
		if name == wildcard {
			return chi.URLParam(req, "*")
		}
		return chi.URLParam(req, name)
	}
	h := nativehttp.Handler(r.Endpoint, specbind.ParamNames(r.Path), param)

	if r.Method == "" {
		b.router.Handle(pattern, h)
		return nil
	}
	b.router.Method(r.Method, pattern, h)
	return nil
}

// Fallback implements specbind.Backend.
func (b *Backend) Fallback(h *specbind.ErrorHandler) {
	b.fallback = h
	b.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		nativehttp.Fail(w, h, specbind.HTTPStatusError(http.StatusNotFound))
	})
	b.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
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
