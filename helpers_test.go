package specbind_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/apitest"
	"github.com/bjaus/specbind/backend/nethttp"
	"github.com/bjaus/specbind/spec"
)

const petstore = `openapi: "3.0.3"
info:
  title: Petstore
  version: "1.0"
servers:
  - url: http://localhost/v1
paths:
  /pets:
    get:
      operationId: listPets
      responses:
        "200":
          description: ok
          content:
            application/json: {}
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
  /secret:
    get:
      operationId: secret
      security:
        - apiKey: []
      responses:
        "200":
          description: ok
components:
  securitySchemes:
    apiKey:
      type: apiKey
      in: header
      name: X-API-Key
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

func mustSpec(t *testing.T, doc string) *spec.Spec {
	t.Helper()
	s, err := spec.Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

// serve mounts doc on a net/http backend and returns a client for it.
func serve(t *testing.T, doc string, handlers specbind.Handlers, appOpts []specbind.AppOption, apiOpts ...specbind.APIOption) *apitest.Client {
	t.Helper()
	b := nethttp.New()
	app := specbind.New(b, appOpts...)
	_, err := app.AddAPI(mustSpec(t, doc), specbind.Stub(handlers), apiOpts...)
	require.NoError(t, err)
	return apitest.NewClient(t, b)
}

// recorder is a Backend that only records the routes bound into it.
type recorder struct {
	routes   []specbind.Route
	fail     error
	failOn   string
	fallback *specbind.ErrorHandler
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Route(rt specbind.Route) error {
	if r.fail != nil {
		return r.fail
	}
	if r.failOn != "" && rt.Key() == r.failOn {
		return errors.New("rejected")
	}
	r.routes = append(r.routes, rt)
	return nil
}

func (r *recorder) Fallback(h *specbind.ErrorHandler) { r.fallback = h }

func (r *recorder) keys() []string {
	keys := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		keys = append(keys, rt.Key())
	}
	return keys
}

func (r *recorder) endpoint(t *testing.T, key string) *specbind.Endpoint {
	t.Helper()
	for _, rt := range r.routes {
		if rt.Key() == key {
			return rt.Endpoint
		}
	}
	t.Fatalf("no route %s in %v", key, r.keys())
	return nil
}
