package chi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/apitest"
	chibackend "github.com/bjaus/specbind/backend/chi"
	"github.com/bjaus/specbind/internal/backendtest"
	"github.com/bjaus/specbind/internal/nativehttp"
	"github.com/bjaus/specbind/spec"
)

const doc = `swagger: "2.0"
info: {title: t, version: "1"}
basePath: /v1
paths:
  /pets/{petId}:
    get:
      operationId: getPet
      responses: {"200": {description: ok}}
`

func TestBackend(t *testing.T) {
	t.Parallel()

	backendtest.Run(t, backendtest.Factory{
		New: func() specbind.Backend { return chibackend.New() },
		Serve: func(t testing.TB, b specbind.Backend) *apitest.Client {
			return apitest.NewClient(t, b.(*chibackend.Backend))
		},
	})
}

func mount(t *testing.T, b *chibackend.Backend, h specbind.HandlerFunc) {
	t.Helper()
	s, err := spec.Parse([]byte(doc))
	require.NoError(t, err)
	_, err = specbind.New(b).AddAPI(s, specbind.Handlers{"getPet": h})
	require.NoError(t, err)
}

func TestBackend_realIP(t *testing.T) {
	t.Parallel()

	b := chibackend.New()
	mount(t, b, func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
		return specbind.Data(req.RemoteAddr), nil
	})

	r := httptest.NewRequest(http.MethodGet, "/v1/pets/1", nil)
	r.Header.Set("X-Real-IP", "203.0.113.9")
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\"203.0.113.9\"\n", rec.Body.String())
}

func TestNewWithRouter(t *testing.T) {
	t.Parallel()

	var seen any
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, store := nativehttp.Attach(r)
			next.ServeHTTP(w, r)
			seen = store["pet"]
		})
	})
	router.Get("/native", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	b := chibackend.NewWithRouter(router)
	assert.Same(t, router, b.Router())
	mount(t, b, func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
		req.Context.Set("pet", req.PathParams["petId"])
		return specbind.Data("ok"), nil
	})

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pets/7", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", seen)

	native := httptest.NewRecorder()
	b.ServeHTTP(native, httptest.NewRequest(http.MethodGet, "/native", nil))
	assert.Equal(t, http.StatusTeapot, native.Code)
}
