// Package nethttp binds mounts into a standard library http.ServeMux.
package nethttp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/internal/nativehttp"
)

// Backend routes with an http.ServeMux using method-qualified patterns.
type Backend struct {
	mux      *http.ServeMux
	fallback *specbind.ErrorHandler
}

var _ specbind.Backend = (*Backend)(nil)

// New creates a Backend with a fresh ServeMux.
func New() *Backend {
	return &Backend{mux: http.NewServeMux()}
}

// Name implements specbind.Backend.
func (b *Backend) Name() string { return "nethttp" }

// Mux returns the underlying ServeMux for registering native handlers.
func (b *Backend) Mux() *http.ServeMux { return b.mux }

// Route implements specbind.Backend.
func (b *Backend) Route(r specbind.Route) (err error) {
	defer func() {
		// ServeMux panics on conflicting patterns.
		if rec := recover(); rec != nil {
			err = fmt.Errorf("nethttp: %v", rec)
		}
	}()

	pattern := Pattern(r.Method, r.Path)
	h := nativehttp.Handler(r.Endpoint, specbind.ParamNames(r.Path), pathValue)
	b.mux.Handle(pattern, h)
	return nil
}

// Fallback implements specbind.Backend.
func (b *Backend) Fallback(h *specbind.ErrorHandler) {
	b.fallback = h
}

// ServeHTTP dispatches through the mux. Unmatched requests and unsupported
// methods are answered with problem responses.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, pattern := b.mux.Handler(r)
	if pattern != "" || b.fallback == nil {
		// Handler does not populate path values; the mux does.
		nativehttp.Recover(b.errors(), b.mux).ServeHTTP(w, r)
		return
	}

	// The mux's own answer for unmatched requests: 404, 405 or a redirect.
	rec := &capture{header: http.Header{}, status: http.StatusOK}
	h.ServeHTTP(rec, r)
	if rec.status != http.StatusNotFound && rec.status != http.StatusMethodNotAllowed {
		rec.replay(w)
		return
	}

	reply := b.fallback.Reply(specbind.HTTPStatusError(rec.status))
	if allow := rec.header.Values("Allow"); len(allow) > 0 {
		reply.Headers["Allow"] = allow
	}
	nativehttp.Write(w, reply)
}

func (b *Backend) errors() *specbind.ErrorHandler {
	if b.fallback == nil {
		return specbind.NewErrorHandler(nil)
	}
	return b.fallback
}

// Pattern converts a route into a ServeMux pattern. Paths ending in a slash
// match exactly.
func Pattern(method, path string) string {
	p := specbind.FormatTemplate(path, func(s specbind.Segment) string {
		if s.Wildcard {
			return "{" + s.Param + "...}"
		}
		return "{" + s.Param + "}"
	})
	if strings.HasSuffix(p, "/") {
		p += "{$}"
	}
	if method == "" {
		return p
	}
	return method + " " + p
}

func pathValue(r *http.Request, name string) string {
	return r.PathValue(name)
}

// Values returns the native values written by handlers for the request
// carrying ctx. It is only populated when WithValues ran before the backend.
func Values(ctx context.Context) map[string]any {
	s, _ := nativehttp.StoreFrom(ctx)
	return s
}

// WithValues is middleware that lets next read, after it returns, the
// values handlers wrote to their request context.
func WithValues(next http.Handler) http.Handler {
	return nativehttp.Middleware(next)
}

type capture struct {
	header http.Header
	status int
	body   []byte
}

func (c *capture) Header() http.Header { return c.header }

func (c *capture) WriteHeader(status int) { c.status = status }

func (c *capture) Write(b []byte) (int, error) {
	c.body = append(c.body, b...)
	return len(b), nil
}

func (c *capture) replay(w http.ResponseWriter) {
	for k, vs := range c.header {
		w.Header()[k] = vs
	}
	w.WriteHeader(c.status)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	w.Write(c.body)
}
