// Package nativehttp translates between net/http and the canonical model. It
// is shared by every backend whose native types are *http.Request and
// http.ResponseWriter.
package nativehttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/bjaus/specbind"
)

type storeKey struct{}

// Store is the per-request native value store for net/http backends. It
// lives in the request context.
type Store map[string]any

// Set implements specbind.NativeStore.
func (s Store) Set(key string, value any) { s[key] = value }

// StoreFrom returns the store attached to ctx.
func StoreFrom(ctx context.Context) (Store, bool) {
	s, ok := ctx.Value(storeKey{}).(Store)
	return s, ok
}

// Attach returns r with a store in its context, reusing one attached by an
// earlier middleware.
func Attach(r *http.Request) (*http.Request, Store) {
	if s, ok := StoreFrom(r.Context()); ok {
		return r, s
	}
	s := Store{}
	return r.WithContext(context.WithValue(r.Context(), storeKey{}, s)), s
}

// Middleware attaches a store before next runs, so next can read values
// written by handlers after the call returns.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _ = Attach(r)
		next.ServeHTTP(w, r)
	})
}

// ParamFunc extracts a path parameter from a routed request.
type ParamFunc func(r *http.Request, name string) string

// Handler wraps an endpoint as a native handler. names are the route's path
// parameter names, resolved through param.
func Handler(ep *specbind.Endpoint, names []string, param ParamFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := Translate(w, r, ep.MaxBodySize(), names, param)
		if err != nil {
			Write(w, ep.Error(err))
			return
		}
		if reply := ep.Serve(req); reply != nil {
			Write(w, reply)
		}
	})
}

// Translate builds the canonical request for r. Context writes go through to
// the store attached to r. maxBody limits the body read; zero means no limit.
func Translate(w http.ResponseWriter, r *http.Request, maxBody int64, names []string, param ParamFunc) (*specbind.Request, error) {
	r, store := Attach(r)

	params := make(map[string]string, len(names))
	for _, name := range names {
		params[name] = param(r, name)
	}
	return NewRequest(w, r, maxBody, params, store)
}

// NewRequest builds the canonical request for r with already extracted path
// parameters and the given native store. Read failures are returned as HTTP
// errors: 413 over maxBody, else 400.
func NewRequest(w http.ResponseWriter, r *http.Request, maxBody int64, params map[string]string, store specbind.NativeStore) (*specbind.Request, error) {
	body, err := readBody(w, r, maxBody)
	if err != nil {
		return nil, err
	}

	return specbind.NewRequest(r.Context(), specbind.Parts{
		URL:            FullURL(r),
		Method:         r.Method,
		Headers:        r.Header,
		Query:          r.URL.Query(),
		Body:           body,
		PathParams:     params,
		RemoteAddr:     r.RemoteAddr,
		Store:          store,
		NativeResponse: w,
	}), nil
}

func readBody(w http.ResponseWriter, r *http.Request, maxBody int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, specbind.BodyTooLarge(tooLarge.Limit)
		}
		return nil, specbind.Error(http.StatusBadRequest, err.Error())
	}
	return body, nil
}

// FullURL reconstructs the absolute URL of r.
func FullURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// Write writes reply to w. Reply headers are applied after the content type,
// so an explicit Content-Type header wins.
func Write(w http.ResponseWriter, reply *specbind.Reply) {
	h := w.Header()
	if reply.ContentType != "" {
		h.Set("Content-Type", reply.ContentType)
	}
	for k, vs := range reply.Headers {
		h.Del(k)
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if reply.HasBody() {
		h.Set("Content-Length", strconv.Itoa(len(reply.Body)))
	}

	w.WriteHeader(reply.Status)
	if len(reply.Body) > 0 {
		//nolint:errcheck,gosec // best-effort after WriteHeader
		w.Write(reply.Body)
	}
}

// Fail writes the normalized reply for err.
func Fail(w http.ResponseWriter, h *specbind.ErrorHandler, err error) {
	Write(w, h.Reply(err))
}

// Recover returns middleware answering panics that escape next with a
// normalized 500.
func Recover(h *specbind.ErrorHandler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rec)
				}
				Fail(w, h, specbind.PanicError(rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
