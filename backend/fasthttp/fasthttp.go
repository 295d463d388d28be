// Package fasthttp binds mounts into a fasthttp/router Router.
package fasthttp

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/bjaus/specbind"
)

// Backend routes with a fasthttp/router Router. Path parameters and context
// writes land in the RequestCtx user values.
//
// Any-method guards are dispatched from the router's NotFound hook by path
// prefix, since catch-all routes cannot share a segment with static routes.
type Backend struct {
	router *router.Router

	mu     sync.RWMutex
	guards []guard
}

type guard struct {
	prefix  string
	param   string
	handler fasthttp.RequestHandler
}

var _ specbind.Backend = (*Backend)(nil)

// New creates a Backend on a fresh router.
func New() *Backend {
	return &Backend{router: router.New()}
}

// Name implements specbind.Backend.
func (b *Backend) Name() string { return "fasthttp" }

// Router returns the underlying router.
func (b *Backend) Router() *router.Router { return b.router }

// Handler is the fasthttp.RequestHandler to serve.
func (b *Backend) Handler(ctx *fasthttp.RequestCtx) {
	b.router.Handler(ctx)
}

// Route implements specbind.Backend.
func (b *Backend) Route(r specbind.Route) (err error) {
	if r.Method == "" {
		segs := specbind.ParseTemplate(r.Path)
		if len(segs) == 0 || !segs[len(segs)-1].Wildcard {
			return fmt.Errorf("fasthttp: any-method route %q must end in a wildcard", r.Path)
		}
		param := segs[len(segs)-1].Param
		b.mu.Lock()
		b.guards = append(b.guards, guard{
			prefix:  r.Prefix(),
			param:   param,
			handler: handler(r.Endpoint, []string{param}, param),
		})
		b.mu.Unlock()
		return nil
	}

	defer func() {
		// The router panics on conflicting routes.
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fasthttp: %v", rec)
		}
	}()

	wildcard := ""
	pattern := specbind.FormatTemplate(r.Path, func(s specbind.Segment) string {
		if s.Wildcard {
			wildcard = s.Param
			return "{" + s.Param + ":*}"
		}
		return "{" + s.Param + "}"
	})
	b.router.Handle(r.Method, pattern, handler(r.Endpoint, specbind.ParamNames(r.Path), wildcard))
	return nil
}

// Fallback implements specbind.Backend.
func (b *Backend) Fallback(h *specbind.ErrorHandler) {
	b.router.NotFound = func(ctx *fasthttp.RequestCtx) {
		if b.guard(ctx) {
			return
		}
		Write(ctx, h.Reply(specbind.HTTPStatusError(http.StatusNotFound)))
	}
	b.router.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		// A guarded path answers like an unknown one, so 405 cannot reveal it.
		if b.guard(ctx) {
			return
		}
		Write(ctx, h.Reply(specbind.HTTPStatusError(http.StatusMethodNotAllowed)))
	}
	b.router.PanicHandler = func(ctx *fasthttp.RequestCtx, rec any) {
		Write(ctx, h.Reply(specbind.PanicError(rec)))
	}
}

func (b *Backend) guard(ctx *fasthttp.RequestCtx) bool {
	path := string(ctx.Path())

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, g := range b.guards {
		if rest, ok := strings.CutPrefix(path, g.prefix); ok {
			ctx.SetUserValue(g.param, rest)
			g.handler(ctx)
			return true
		}
	}
	return false
}

func handler(ep *specbind.Endpoint, names []string, wildcard string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if limit := ep.MaxBodySize(); limit > 0 && int64(len(ctx.PostBody())) > limit {
			Write(ctx, ep.Error(specbind.BodyTooLarge(limit)))
			return
		}
		params := make(map[string]string, len(names))
		for _, name := range names {
			v, _ := ctx.UserValue(name).(string)
			if name == wildcard {
				v = strings.TrimPrefix(v, "/")
			}
			params[name] = v
		}
		if reply := ep.Serve(Translate(ctx, params)); reply != nil {
			Write(ctx, reply)
		}
	}
}

// Translate builds the canonical request for ctx. Context writes go through
// to the RequestCtx user values.
func Translate(ctx *fasthttp.RequestCtx, params map[string]string) *specbind.Request {
	headers := http.Header{}
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		headers.Add(string(k), string(v))
	})

	query := url.Values{}
	ctx.QueryArgs().VisitAll(func(k, v []byte) {
		query.Add(string(k), string(v))
	})

	// The request buffer is reused once the handler returns.
	body := bytes.Clone(ctx.PostBody())

	return specbind.NewRequest(ctx, specbind.Parts{
		URL:        string(ctx.URI().FullURI()),
		Method:     string(ctx.Method()),
		Headers:    headers,
		Query:      query,
		Body:       body,
		PathParams: params,
		RemoteAddr: ctx.RemoteAddr().String(),
		Store: specbind.StoreFunc(func(key string, value any) {
			ctx.SetUserValue(key, value)
		}),
		NativeResponse: &ctx.Response,
	})
}

// Write writes reply into the response of ctx. Reply headers are applied
// after the content type, so an explicit Content-Type header wins.
func Write(ctx *fasthttp.RequestCtx, reply *specbind.Reply) {
	ctx.SetStatusCode(reply.Status)
	if reply.ContentType != "" {
		ctx.SetContentType(reply.ContentType)
	}
	for k, vs := range reply.Headers {
		ctx.Response.Header.Del(k)
		for _, v := range vs {
			ctx.Response.Header.Add(k, v)
		}
	}
	if reply.HasBody() {
		ctx.SetBody(reply.Body)
	} else {
		ctx.ResetBody()
	}
}
