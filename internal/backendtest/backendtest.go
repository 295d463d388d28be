// Package backendtest is a conformance suite every backend adapter runs: the
// same mounts driven over real HTTP must answer the same way on each.
package backendtest

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/apitest"
	"github.com/bjaus/specbind/security"
	"github.com/bjaus/specbind/spec"
)

// Factory creates fresh backends and serves them.
type Factory struct {
	New   func() specbind.Backend
	Serve func(t testing.TB, b specbind.Backend) *apitest.Client
}

const petstore = `openapi: "3.0.3"
info:
  title: Petstore
  version: "1.0"
servers:
  - url: /v1
paths:
  /pets:
    get:
      operationId: listPets
      responses:
        "200":
          description: ok
    post:
      operationId: createPet
      responses:
        "201":
          description: created
  /pets/{petId}:
    get:
      operationId: getPet
      responses:
        "200":
          description: ok
  /boom:
    get:
      operationId: boom
      responses:
        "200":
          description: ok
`

const guarded = `swagger: "2.0"
info:
  title: Guarded
  version: "1"
basePath: /api
security:
  - key: []
securityDefinitions:
  key:
    type: apiKey
    in: header
    name: X-API-Key
paths:
  /ping:
    get:
      operationId: ping
      security: []
      responses:
        "200":
          description: ok
  /private:
    get:
      operationId: private
      responses:
        "200":
          description: ok
`

var handlers = specbind.Handlers{
	"listPets": func(context.Context, *specbind.Request) (specbind.Result, error) {
		return specbind.Data([]string{"rex", "tom"}), nil
	},
	"createPet": func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
		return specbind.Status(req.JSON, http.StatusCreated), nil
	},
	"getPet": func(_ context.Context, req *specbind.Request) (specbind.Result, error) {
		return specbind.Data(map[string]string{
			"id": req.PathParams["petId"],
			"q":  req.Query.Get("q"),
		}), nil
	},
	"boom": func(context.Context, *specbind.Request) (specbind.Result, error) {
		panic("boom")
	},
	"ping":    ok,
	"private": ok,
}

func ok(context.Context, *specbind.Request) (specbind.Result, error) {
	return specbind.Data("ok"), nil
}

func mount(t *testing.T, f Factory, doc string, appOpts []specbind.AppOption, apiOpts ...specbind.APIOption) *apitest.Client {
	t.Helper()
	s, err := spec.Parse([]byte(doc))
	require.NoError(t, err)

	b := f.New()
	_, err = specbind.New(b, appOpts...).AddAPI(s, handlers, apiOpts...)
	require.NoError(t, err)
	return f.Serve(t, b)
}

// Run runs the suite against backends made by f.
func Run(t *testing.T, f Factory) {
	t.Helper()

	t.Run("routing", func(t *testing.T) {
		t.Parallel()
		testRouting(t, mount(t, f, petstore, nil))
	})
	t.Run("spec json", func(t *testing.T) {
		t.Parallel()
		testSpecJSON(t, mount(t, f, petstore, nil))
	})
	t.Run("console ui", func(t *testing.T) {
		t.Parallel()
		testConsoleUI(t, mount(t, f, petstore, nil))
	})
	t.Run("request id", func(t *testing.T) {
		t.Parallel()
		testRequestID(t, mount(t, f, petstore, nil))
	})
	t.Run("max body size", func(t *testing.T) {
		t.Parallel()
		testMaxBodySize(t, mount(t, f, petstore, []specbind.AppOption{specbind.WithMaxBodySize(8)}))
	})
	t.Run("auth on not found", func(t *testing.T) {
		t.Parallel()

		options := specbind.DefaultOptions()
		options.AuthAllPaths = true
		evaluator := specbind.WithSecurityEvaluator(security.New(security.WithAPIKeys("k1")))
		testGuard(t, mount(t, f, guarded, []specbind.AppOption{evaluator}, specbind.WithOptions(options)))
	})
}

func testRouting(t *testing.T, c *apitest.Client) {
	t.Helper()

	tests := map[string]struct {
		method     string
		path       string
		body       []byte
		wantStatus int
		wantType   string
		wantBody   string
	}{
		"list": {
			method:     http.MethodGet,
			path:       "/v1/pets",
			wantStatus: http.StatusOK,
			wantType:   "application/json",
			wantBody:   "[\n  \"rex\",\n  \"tom\"\n]\n",
		},
		"create": {
			method:     http.MethodPost,
			path:       "/v1/pets",
			body:       []byte(`{"name":"rex"}`),
			wantStatus: http.StatusCreated,
			wantType:   "application/json",
			wantBody:   "{\n  \"name\": \"rex\"\n}\n",
		},
		"path and query parameters": {
			method:     http.MethodGet,
			path:       "/v1/pets/42?q=x",
			wantStatus: http.StatusOK,
			wantType:   "application/json",
			wantBody:   "{\n  \"id\": \"42\",\n  \"q\": \"x\"\n}\n",
		},
		"unknown path": {
			method:     http.MethodGet,
			path:       "/v1/unknown",
			wantStatus: http.StatusNotFound,
			wantType:   specbind.ProblemContentType,
		},
		"outside base path": {
			method:     http.MethodGet,
			path:       "/pets",
			wantStatus: http.StatusNotFound,
			wantType:   specbind.ProblemContentType,
		},
		"method not allowed": {
			method:     http.MethodDelete,
			path:       "/v1/pets",
			wantStatus: http.StatusMethodNotAllowed,
			wantType:   specbind.ProblemContentType,
		},
		"panic": {
			method:     http.MethodGet,
			path:       "/v1/boom",
			wantStatus: http.StatusInternalServerError,
			wantType:   specbind.ProblemContentType,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var headers http.Header
			if tc.body != nil {
				headers = http.Header{"Content-Type": {"application/json"}}
			}
			resp := apitest.Raw(t, c, tc.method, tc.path, tc.body, headers)

			assert.Equal(t, tc.wantStatus, resp.Status, string(resp.Bytes))
			assert.Equal(t, tc.wantType, resp.Headers.Get("Content-Type"))
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, string(resp.Bytes))
			}
			if tc.wantType == specbind.ProblemContentType {
				problem, _ := specbind.Loads(resp.Bytes).(map[string]any)
				require.NotNil(t, problem, string(resp.Bytes))
				assert.InDelta(t, tc.wantStatus, problem["status"], 0)
				assert.NotContains(t, string(resp.Bytes), "boom")
			}
		})
	}
}

func testSpecJSON(t *testing.T, c *apitest.Client) {
	t.Helper()

	s, err := spec.Parse([]byte(petstore))
	require.NoError(t, err)
	want, err := specbind.Dumps(s.Document())
	require.NoError(t, err)

	resp := apitest.Raw(t, c, http.MethodGet, "/v1/openapi.json", nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json", resp.Headers.Get("Content-Type"))
	assert.Equal(t, string(want), string(resp.Bytes))
}

func testConsoleUI(t *testing.T, c *apitest.Client) {
	t.Helper()

	redirect := apitest.Raw(t, c, http.MethodGet, "/v1/ui", nil)
	assert.Equal(t, http.StatusMovedPermanently, redirect.Status)
	assert.Equal(t, "/v1/ui/", redirect.Headers.Get("Location"))

	home := apitest.Raw(t, c, http.MethodGet, "/v1/ui/", nil)
	assert.Equal(t, http.StatusOK, home.Status)
	assert.True(t, strings.HasPrefix(home.Headers.Get("Content-Type"), "text/html"))
	assert.Contains(t, string(home.Bytes), `data-spec-url="/v1/openapi.json"`)

	asset := apitest.Raw(t, c, http.MethodGet, "/v1/ui/lib/missing.js", nil)
	assert.Equal(t, http.StatusNotFound, asset.Status)
}

func testRequestID(t *testing.T, c *apitest.Client) {
	t.Helper()

	generated := apitest.Raw(t, c, http.MethodGet, "/v1/pets", nil)
	assert.NotEmpty(t, generated.Headers.Get(specbind.DefaultRequestIDHeader))

	given := apitest.Raw(t, c, http.MethodGet, "/v1/pets", nil, http.Header{"X-Request-ID": {"given-1"}})
	assert.Equal(t, "given-1", given.Headers.Get(specbind.DefaultRequestIDHeader))
}

func testMaxBodySize(t *testing.T, c *apitest.Client) {
	t.Helper()

	small := apitest.Raw(t, c, http.MethodPost, "/v1/pets", []byte(`{}`), http.Header{"Content-Type": {"application/json"}})
	assert.Equal(t, http.StatusCreated, small.Status)

	large := apitest.Raw(t, c, http.MethodPost, "/v1/pets", []byte(`{"name":"a long name"}`), http.Header{"Content-Type": {"application/json"}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, large.Status)
	assert.Equal(t, specbind.ProblemContentType, large.Headers.Get("Content-Type"))
}

func testGuard(t *testing.T, c *apitest.Client) {
	t.Helper()

	key := http.Header{"X-API-Key": {"k1"}}

	tests := map[string]struct {
		method     string
		path       string
		headers    http.Header
		wantStatus int
	}{
		"anonymous operation":      {method: http.MethodGet, path: "/api/ping", wantStatus: http.StatusOK},
		"secured operation":        {method: http.MethodGet, path: "/api/private", wantStatus: http.StatusUnauthorized},
		"secured operation keyed":  {method: http.MethodGet, path: "/api/private", headers: key, wantStatus: http.StatusOK},
		"unknown path":             {method: http.MethodGet, path: "/api/nope", wantStatus: http.StatusUnauthorized},
		"unknown path keyed":       {method: http.MethodGet, path: "/api/nope", headers: key, wantStatus: http.StatusNotFound},
		"unknown nested path":      {method: http.MethodPost, path: "/api/a/b", wantStatus: http.StatusUnauthorized},
		"unknown nested keyed":     {method: http.MethodPost, path: "/api/a/b", headers: key, wantStatus: http.StatusNotFound},
		"wrong method":             {method: http.MethodDelete, path: "/api/private", wantStatus: http.StatusUnauthorized},
		"wrong method keyed":       {method: http.MethodDelete, path: "/api/private", headers: key, wantStatus: http.StatusNotFound},
		"spec stays public":        {method: http.MethodGet, path: "/api/swagger.json", wantStatus: http.StatusOK},
		"outside guarded base":     {method: http.MethodGet, path: "/elsewhere", wantStatus: http.StatusNotFound},
		"console ui stays public":  {method: http.MethodGet, path: "/api/ui/", wantStatus: http.StatusOK},
		"console redirect is kept": {method: http.MethodGet, path: "/api/ui", wantStatus: http.StatusMovedPermanently},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			resp := apitest.Raw(t, c, tc.method, tc.path, nil, tc.headers)
			assert.Equal(t, tc.wantStatus, resp.Status, string(resp.Bytes))
		})
	}
}
