package specbind_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/apitest"
	"github.com/bjaus/specbind/security"
)

// syncBuffer is a log sink shared with server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func jsonLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestApp_requests(t *testing.T) {
	t.Parallel()

	handlers := specbind.Handlers{
		"listPets": func(context.Context, *specbind.Request) (specbind.Result, error) {
			return specbind.Data(map[string]int{"a": 1}), nil
		},
		"createPet": func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
			if req.JSON == nil {
				return specbind.Status(specbind.NoContent, http.StatusNoContent), nil
			}
			return specbind.Status(req.JSON, http.StatusCreated), nil
		},
		"getPet": func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
			if req.PathParams["petId"] == "0" {
				return nil, specbind.Errorf(http.StatusNotFound, "pet %s does not exist", req.PathParams["petId"])
			}
			return specbind.StatusHeaders(
				map[string]string{"id": req.PathParams["petId"], "q": req.Query.Get("q")},
				http.StatusOK,
				http.Header{"X-Pet": {req.PathParams["petId"]}},
			), nil
		},
	}
	c := serve(t, petstore, handlers, nil)

	tests := map[string]struct {
		method      string
		path        string
		body        []byte
		headers     http.Header
		wantStatus  int
		wantType    string
		wantBody    string
		wantHeaders http.Header
	}{
		"payload": {
			method:     http.MethodGet,
			path:       "/v1/pets",
			wantStatus: http.StatusOK,
			wantType:   "application/json",
			wantBody:   "{\n  \"a\": 1\n}\n",
		},
		"created": {
			method:     http.MethodPost,
			path:       "/v1/pets",
			body:       []byte(`{"name":"rex"}`),
			headers:    http.Header{"Content-Type": {"application/json"}},
			wantStatus: http.StatusCreated,
			wantBody:   "{\n  \"name\": \"rex\"\n}\n",
		},
		"no content": {
			method:     http.MethodPost,
			path:       "/v1/pets",
			wantStatus: http.StatusNoContent,
			wantBody:   "",
		},
		"path and query parameters": {
			method:      http.MethodGet,
			path:        "/v1/pets/42?q=tail",
			wantStatus:  http.StatusOK,
			wantBody:    "{\n  \"id\": \"42\",\n  \"q\": \"tail\"\n}\n",
			wantHeaders: http.Header{"X-Pet": {"42"}},
		},
		"handler error": {
			method:     http.MethodGet,
			path:       "/v1/pets/0",
			wantStatus: http.StatusNotFound,
			wantType:   specbind.ProblemContentType,
		},
		"unresolved operation": {
			method:     http.MethodGet,
			path:       "/v1/secret",
			wantStatus: http.StatusNotImplemented,
			wantType:   specbind.ProblemContentType,
		},
		"unknown path": {
			method:     http.MethodGet,
			path:       "/v1/nope",
			wantStatus: http.StatusNotFound,
			wantType:   specbind.ProblemContentType,
		},
		"method not allowed": {
			method:     http.MethodDelete,
			path:       "/v1/pets",
			wantStatus: http.StatusMethodNotAllowed,
			wantType:   specbind.ProblemContentType,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := apitest.Raw(t, c, tc.method, tc.path, tc.body, tc.headers)
			assert.Equal(t, tc.wantStatus, resp.Status)
			if tc.wantType != "" {
				assert.Equal(t, tc.wantType, resp.Headers.Get("Content-Type"))
			}
			if tc.wantType != specbind.ProblemContentType {
				assert.Equal(t, tc.wantBody, string(resp.Bytes))
			}
			for k, v := range tc.wantHeaders {
				assert.Equal(t, v, resp.Headers.Values(k))
			}
		})
	}
}

func TestApp_problemBody(t *testing.T) {
	t.Parallel()

	c := serve(t, petstore, specbind.Handlers{}, nil)

	resp := apitest.Get[specbind.ProblemDetail](t, c, "/v1/secret")
	require.NotNil(t, resp.Body)
	assert.Equal(t, http.StatusNotImplemented, resp.Body.Status)
	assert.Equal(t, "Not Implemented", resp.Body.Title)
	assert.Equal(t, "about:blank", resp.Body.Type)

	notAllowed := apitest.Raw(t, c, http.MethodDelete, "/v1/pets", nil)
	assert.Contains(t, notAllowed.Headers.Get("Allow"), http.MethodPost)
}

func TestApp_specJSON(t *testing.T) {
	t.Parallel()

	c := serve(t, petstore, specbind.Handlers{}, nil)
	want, err := specbind.Dumps(mustSpec(t, petstore).Document())
	require.NoError(t, err)

	first := apitest.Raw(t, c, http.MethodGet, "/v1/openapi.json", nil)
	second := apitest.Raw(t, c, http.MethodGet, "/v1/openapi.json", nil)

	assert.Equal(t, http.StatusOK, first.Status)
	assert.Equal(t, "application/json", first.Headers.Get("Content-Type"))
	assert.Equal(t, string(want), string(first.Bytes))
	assert.Equal(t, first.Bytes, second.Bytes)
	assert.True(t, strings.HasPrefix(string(first.Bytes), "{\n  \"openapi\": \"3.0.3\",\n  \"info\""),
		"document key order is kept")
}

func TestApp_panic(t *testing.T) {
	t.Parallel()

	var logs syncBuffer
	c := serve(t, petstore, specbind.Handlers{
		"listPets": func(context.Context, *specbind.Request) (specbind.Result, error) {
			panic("database exploded")
		},
	}, []specbind.AppOption{specbind.WithLogger(jsonLogger(&logs))})

	resp := apitest.Get[specbind.ProblemDetail](t, c, "/v1/pets")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	require.NotNil(t, resp.Body)
	assert.NotContains(t, resp.Body.Detail, "database exploded")
	assert.Contains(t, logs.String(), "panic recovered")
	assert.Contains(t, logs.String(), "database exploded")
}

func TestApp_requestID(t *testing.T) {
	t.Parallel()

	echoID := specbind.Handlers{
		"listPets": func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
			return specbind.Data(map[string]string{"id": specbind.RequestID(req)}), nil
		},
	}

	t.Run("generated", func(t *testing.T) {
		t.Parallel()
		c := serve(t, petstore, echoID, nil)

		resp := apitest.Get[map[string]string](t, c, "/v1/pets")
		id := resp.Headers.Get(specbind.DefaultRequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		require.NotNil(t, resp.Body)
		assert.Equal(t, id, (*resp.Body)["id"])
	})

	t.Run("preserved", func(t *testing.T) {
		t.Parallel()
		c := serve(t, petstore, echoID, nil)

		resp := apitest.Get[map[string]string](t, c, "/v1/pets", http.Header{"X-Request-ID": {"req-7"}})
		assert.Equal(t, "req-7", resp.Headers.Get("X-Request-ID"))
		assert.Equal(t, "req-7", (*resp.Body)["id"])
	})

	t.Run("custom header", func(t *testing.T) {
		t.Parallel()
		c := serve(t, petstore, echoID, []specbind.AppOption{specbind.WithRequestIDHeader("X-Correlation-ID")})

		resp := apitest.Get[map[string]string](t, c, "/v1/pets", http.Header{"X-Correlation-ID": {"corr-1"}})
		assert.Equal(t, "corr-1", resp.Headers.Get("X-Correlation-ID"))
		assert.Empty(t, resp.Headers.Get("X-Request-ID"))
	})
}

func TestApp_security(t *testing.T) {
	t.Parallel()

	handlers := specbind.Handlers{
		"ping": okHandler,
		"private": func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
			user, _ := specbind.Value[string](req.Context, security.UserKey)
			return specbind.Data(map[string]string{"user": user}), nil
		},
	}
	options := specbind.DefaultOptions()
	options.AuthAllPaths = true

	c := serve(t, guarded, handlers,
		[]specbind.AppOption{specbind.WithSecurityEvaluator(security.New(security.WithAPIKeys("k1")))},
		specbind.WithOptions(options),
	)

	good := http.Header{"X-API-Key": {"k1"}}
	bad := http.Header{"X-API-Key": {"nope"}}

	tests := map[string]struct {
		path       string
		headers    http.Header
		wantStatus int
	}{
		"anonymous operation":          {path: "/api/ping", wantStatus: http.StatusOK},
		"secured without key":          {path: "/api/private", wantStatus: http.StatusUnauthorized},
		"secured with wrong key":       {path: "/api/private", headers: bad, wantStatus: http.StatusForbidden},
		"secured with key":             {path: "/api/private", headers: good, wantStatus: http.StatusOK},
		"unknown path without key":     {path: "/api/missing", wantStatus: http.StatusUnauthorized},
		"unknown path with key":        {path: "/api/missing", headers: good, wantStatus: http.StatusNotFound},
		"nested unknown path":          {path: "/api/a/b/c", wantStatus: http.StatusUnauthorized},
		"spec is public":               {path: "/api/swagger.json", wantStatus: http.StatusOK},
		"console is public":            {path: "/api/ui/", wantStatus: http.StatusOK},
		"outside base path is unknown": {path: "/other", wantStatus: http.StatusNotFound},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			resp := apitest.Raw(t, c, http.MethodGet, tc.path, nil, tc.headers)
			assert.Equal(t, tc.wantStatus, resp.Status, string(resp.Bytes))
		})
	}

	t.Run("user is visible to handler", func(t *testing.T) {
		t.Parallel()
		resp := apitest.Get[map[string]string](t, c, "/api/private", good)
		require.NotNil(t, resp.Body)
		assert.Equal(t, "apikey", (*resp.Body)["user"])
	})
}

func TestApp_securityWithoutEvaluator(t *testing.T) {
	t.Parallel()

	var logs syncBuffer
	c := serve(t, petstore, specbind.Handlers{"secret": okHandler},
		[]specbind.AppOption{specbind.WithLogger(jsonLogger(&logs))})

	resp := apitest.Raw(t, c, http.MethodGet, "/v1/secret", nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, logs.String(), "no evaluator is configured")
}

func TestApp_rateLimit(t *testing.T) {
	t.Parallel()

	c := serve(t, petstore, specbind.Handlers{"listPets": okHandler},
		[]specbind.AppOption{specbind.WithRateLimit(specbind.RateLimitConfig{Rate: 1, Burst: 1})})

	first := apitest.Raw(t, c, http.MethodGet, "/v1/pets", nil)
	assert.Equal(t, http.StatusOK, first.Status)

	second := apitest.Raw(t, c, http.MethodGet, "/v1/pets", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Status)
	assert.Equal(t, "1", second.Headers.Get("Retry-After"))
	assert.Equal(t, specbind.ProblemContentType, second.Headers.Get("Content-Type"))

	for range 3 {
		resp := apitest.Raw(t, c, http.MethodGet, "/v1/openapi.json", nil)
		assert.Equal(t, http.StatusOK, resp.Status, "auxiliary endpoints are not limited")
	}
}

func TestApp_timeout(t *testing.T) {
	t.Parallel()

	c := serve(t, petstore, specbind.Handlers{
		"listPets": func(ctx context.Context, _ *specbind.Request) (specbind.Result, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return specbind.Data("late"), nil
			}
		},
	}, []specbind.AppOption{specbind.WithTimeout(20 * time.Millisecond)})

	resp := apitest.Raw(t, c, http.MethodGet, "/v1/pets", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
}

func TestApp_maxBodySize(t *testing.T) {
	t.Parallel()

	c := serve(t, petstore, specbind.Handlers{
		"createPet": func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
			return specbind.Status(req.JSON, http.StatusCreated), nil
		},
	}, []specbind.AppOption{specbind.WithMaxBodySize(16)})

	small := apitest.Raw(t, c, http.MethodPost, "/v1/pets", []byte(`{"a":1}`),
		http.Header{"Content-Type": {"application/json"}})
	assert.Equal(t, http.StatusCreated, small.Status)

	large := apitest.Raw(t, c, http.MethodPost, "/v1/pets", bytes.Repeat([]byte("x"), 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, large.Status)

	var problem specbind.ProblemDetail
	require.NoError(t, json.Unmarshal(large.Bytes, &problem))
	assert.Equal(t, "request body exceeds 16 bytes", problem.Detail)
}

func TestApp_secureHeaders(t *testing.T) {
	t.Parallel()

	c := serve(t, petstore, specbind.Handlers{"listPets": okHandler},
		[]specbind.AppOption{specbind.WithSecureHeaders()})

	for _, path := range []string{"/v1/pets", "/v1/openapi.json"} {
		resp := apitest.Raw(t, c, http.MethodGet, path, nil)
		assert.Equal(t, "nosniff", resp.Headers.Get("X-Content-Type-Options"), path)
		assert.Equal(t, "DENY", resp.Headers.Get("X-Frame-Options"), path)
		assert.Equal(t, "strict-origin-when-cross-origin", resp.Headers.Get("Referrer-Policy"), path)
		assert.Empty(t, resp.Headers.Get("Strict-Transport-Security"), path)
	}
}

func TestApp_passthrough(t *testing.T) {
	t.Parallel()

	c := serve(t, petstore, specbind.Handlers{
		"listPets": func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
			w := req.NativeResponse().(http.ResponseWriter)
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusAccepted)
			_, err := w.Write([]byte("streamed"))
			return specbind.Native(w), err
		},
		"createPet": func(context.Context, *specbind.Request) (specbind.Result, error) {
			return specbind.Native("someone else's writer"), nil
		},
	}, nil)

	own := apitest.Raw(t, c, http.MethodGet, "/v1/pets", nil)
	assert.Equal(t, http.StatusAccepted, own.Status)
	assert.Equal(t, "text/plain", own.Headers.Get("Content-Type"))
	assert.Equal(t, "streamed", string(own.Bytes))

	foreign := apitest.Raw(t, c, http.MethodPost, "/v1/pets", nil)
	assert.Equal(t, http.StatusInternalServerError, foreign.Status)
}

func TestApp_consoleUI(t *testing.T) {
	t.Parallel()

	c := serve(t, petstore, specbind.Handlers{}, nil)

	tests := map[string]struct {
		path         string
		wantStatus   int
		wantLocation string
		wantContains string
	}{
		"redirects to trailing slash": {
			path:         "/v1/ui",
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "/v1/ui/",
		},
		"home": {
			path:         "/v1/ui/",
			wantStatus:   http.StatusOK,
			wantContains: `data-spec-url="/v1/openapi.json"`,
		},
		"index": {
			path:         "/v1/ui/index.html",
			wantStatus:   http.StatusOK,
			wantContains: "<title>Petstore</title>",
		},
		"assets come from the cdn": {
			path:       "/v1/ui/swagger-ui.css",
			wantStatus: http.StatusNotFound,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			resp := apitest.Raw(t, c, http.MethodGet, tc.path, nil)
			assert.Equal(t, tc.wantStatus, resp.Status)
			if tc.wantLocation != "" {
				assert.Equal(t, tc.wantLocation, resp.Headers.Get("Location"))
			}
			if tc.wantContains != "" {
				assert.Contains(t, string(resp.Bytes), tc.wantContains)
			}
		})
	}
}

func TestApp_consoleUIFromDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600))

	options := specbind.DefaultOptions()
	options.ConsoleUIPath = "/docs"
	options.ConsoleUIFromDir = dir
	c := serve(t, petstore, specbind.Handlers{}, nil, specbind.WithOptions(options))

	home := apitest.Raw(t, c, http.MethodGet, "/v1/docs/", nil)
	assert.Equal(t, http.StatusOK, home.Status)
	assert.Contains(t, string(home.Bytes), `href="/v1/docs/swagger-ui.css"`)

	asset := apitest.Raw(t, c, http.MethodGet, "/v1/docs/app.js", nil)
	assert.Equal(t, http.StatusOK, asset.Status)
	assert.Contains(t, asset.Headers.Get("Content-Type"), "javascript")
	assert.Equal(t, "console.log(1)", string(asset.Bytes))

	missing := apitest.Raw(t, c, http.MethodGet, "/v1/docs/missing.js", nil)
	assert.Equal(t, http.StatusNotFound, missing.Status)
}

func TestApp_consoleUIFromMissingDir(t *testing.T) {
	t.Parallel()

	options := specbind.DefaultOptions()
	options.ConsoleUIFromDir = filepath.Join(t.TempDir(), "absent")

	rec := &recorder{}
	_, err := specbind.New(rec).AddAPI(mustSpec(t, petstore), specbind.Stub(specbind.Handlers{}), specbind.WithOptions(options))
	require.Error(t, err)
	assert.Empty(t, rec.routes)
}

func TestApp_metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := specbind.NewMetrics(reg)
	require.NoError(t, err)

	c := serve(t, petstore, specbind.Handlers{"listPets": okHandler}, []specbind.AppOption{specbind.WithMetrics(m)})

	apitest.Raw(t, c, http.MethodGet, "/v1/pets", nil)
	apitest.Raw(t, c, http.MethodGet, "/v1/nope", nil)

	expected := `
# HELP specbind_requests_total Total requests served by operation routes.
# TYPE specbind_requests_total counter
specbind_requests_total{backend="nethttp",method="GET",operation="listPets",status="200"} 1
# HELP specbind_problems_total Problem responses produced by error normalization.
# TYPE specbind_problems_total counter
specbind_problems_total{backend="nethttp",status="404"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"specbind_requests_total", "specbind_problems_total"))
}

func TestApp_logging(t *testing.T) {
	t.Parallel()

	var logs syncBuffer
	c := serve(t, petstore, specbind.Handlers{"listPets": okHandler},
		[]specbind.AppOption{specbind.WithLogger(jsonLogger(&logs))})

	apitest.Raw(t, c, http.MethodGet, "/v1/pets", nil)

	out := logs.String()
	assert.Contains(t, out, `"msg":"api bound"`)
	assert.Contains(t, out, `"msg":"adding operation"`)
	assert.Contains(t, out, `"operation_id":"listPets"`)
	assert.Contains(t, out, `"backend":"nethttp"`)
	assert.Contains(t, out, `"status":200`)
}
