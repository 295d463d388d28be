// Package gin binds mounts into a gin Engine.
package gin

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/internal/nativehttp"
)

// Backend routes with a gin.Engine. Context writes land in the gin.Context
// keys, so gin middleware can read them with c.Get.
//
// Any-method guards are dispatched from NoRoute by path prefix, since gin
// does not allow a catch-all next to static routes in the same segment.
type Backend struct {
	engine *gin.Engine

	mu     sync.RWMutex
	guards []guard
}

type guard struct {
	prefix  string
	handler gin.HandlerFunc
}

var _ specbind.Backend = (*Backend)(nil)

// New creates a Backend on a fresh engine without default middleware.
func New() *Backend {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	return &Backend{engine: engine}
}

// NewWithEngine creates a Backend registering into an existing engine.
func NewWithEngine(e *gin.Engine) *Backend {
	return &Backend{engine: e}
}

// Name implements specbind.Backend.
func (b *Backend) Name() string { return "gin" }

// Engine returns the underlying engine.
func (b *Backend) Engine() *gin.Engine { return b.engine }

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.engine.ServeHTTP(w, r)
}

// Route implements specbind.Backend.
func (b *Backend) Route(r specbind.Route) (err error) {
	if r.Method == "" {
		segs := specbind.ParseTemplate(r.Path)
		if len(segs) == 0 || !segs[len(segs)-1].Wildcard {
			return fmt.Errorf("gin: any-method route %q must end in a wildcard", r.Path)
		}
		name := segs[len(segs)-1].Param
		prefix := r.Prefix()
		rest := func(c *gin.Context, _ string) string {
			return strings.TrimPrefix(c.Request.URL.Path, prefix)
		}
		b.mu.Lock()
		b.guards = append(b.guards, guard{prefix: prefix, handler: handler(r.Endpoint, rest, name)})
		b.mu.Unlock()
		return nil
	}

	defer func() {
		// gin panics on conflicting routes.
		if rec := recover(); rec != nil {
			err = fmt.Errorf("gin: %v", rec)
		}
	}()

	b.engine.Handle(r.Method, Pattern(r.Path), handler(r.Endpoint, param, specbind.ParamNames(r.Path)...))
	return nil
}

// Fallback implements specbind.Backend.
func (b *Backend) Fallback(h *specbind.ErrorHandler) {
	b.engine.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		nativehttp.Fail(c.Writer, h, specbind.PanicError(rec))
		c.Abort()
	}))
	b.engine.NoRoute(func(c *gin.Context) {
		if b.guard(c) {
			return
		}
		nativehttp.Fail(c.Writer, h, specbind.HTTPStatusError(http.StatusNotFound))
	})
	b.engine.NoMethod(func(c *gin.Context) {
		// A guarded path answers like an unknown one, so 405 cannot reveal it.
		if b.guard(c) {
			return
		}
		nativehttp.Fail(c.Writer, h, specbind.HTTPStatusError(http.StatusMethodNotAllowed))
	})
}

func (b *Backend) guard(c *gin.Context) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, g := range b.guards {
		if strings.HasPrefix(c.Request.URL.Path, g.prefix) {
			g.handler(c)
			return true
		}
	}
	return false
}

// Pattern converts a path template into gin syntax.
func Pattern(path string) string {
	return specbind.FormatTemplate(path, func(s specbind.Segment) string {
		if s.Wildcard {
			return "*" + s.Param
		}
		return ":" + s.Param
	})
}

// param reads a path parameter. gin keeps the leading slash of catch-all
// values; the canonical form drops it.
func param(c *gin.Context, name string) string {
	return strings.TrimPrefix(c.Param(name), "/")
}

func handler(ep *specbind.Endpoint, get func(*gin.Context, string) string, names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := make(map[string]string, len(names))
		for _, name := range names {
			params[name] = get(c, name)
		}

		req, err := nativehttp.NewRequest(c.Writer, c.Request, ep.MaxBodySize(), params, specbind.StoreFunc(c.Set))
		if err != nil {
			nativehttp.Write(c.Writer, ep.Error(err))
			return
		}
		if reply := ep.Serve(req); reply != nil {
			nativehttp.Write(c.Writer, reply)
		}
	}
}
