package specbind_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/specbind"
)

func okHandler(context.Context, *specbind.Request) (specbind.Result, error) {
	return specbind.Data("ok"), nil
}

func TestAPI_lifecycle(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := specbind.New(rec)
	api := app.NewAPI(mustSpec(t, petstore))
	assert.Equal(t, specbind.StateCreated, api.State())

	require.NoError(t, api.AddOperation(specbind.Operation{Method: "get", Path: "/pets", OperationID: "listPets", Handler: okHandler}))
	assert.Equal(t, specbind.StateRoutesRegistered, api.State())

	require.NoError(t, api.Bind(rec))
	assert.Equal(t, specbind.StateBound, api.State())
	assert.Equal(t, []string{"GET /v1/pets"}, rec.keys())

	err := api.AddOperation(specbind.Operation{Method: "POST", Path: "/pets", OperationID: "createPet", Handler: okHandler})
	require.ErrorIs(t, err, specbind.ErrMountBound)
	require.ErrorIs(t, api.AddSpecJSON(), specbind.ErrMountBound)
	require.ErrorIs(t, api.AddConsoleUI(), specbind.ErrMountBound)
	require.ErrorIs(t, api.AddAuthOnNotFound(nil), specbind.ErrMountBound)
	require.ErrorIs(t, api.Bind(rec), specbind.ErrMountBound)

	assert.Len(t, api.Routes(), 1)
	assert.Len(t, rec.routes, 1)
}

func TestAPI_duplicateRoute(t *testing.T) {
	t.Parallel()

	api := specbind.New(&recorder{}).NewAPI(mustSpec(t, petstore))
	op := specbind.Operation{Method: "GET", Path: "/pets", OperationID: "listPets", Handler: okHandler}

	require.NoError(t, api.AddOperation(op))
	op.OperationID = "listPetsAgain"
	require.ErrorIs(t, api.AddOperation(op), specbind.ErrDuplicateRoute)

	require.NoError(t, api.AddSpecJSON())
	require.ErrorIs(t, api.AddSpecJSON(), specbind.ErrDuplicateRoute)
	assert.Len(t, api.Routes(), 2)
}

func TestAPI_duplicateRoute_paramNames(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		first   string
		second  string
		wantErr bool
	}{
		"renamed param":          {first: "/x/{id}", second: "/x/{name}", wantErr: true},
		"renamed wildcard":       {first: "/files/{path...}", second: "/files/{rest...}", wantErr: true},
		"param vs wildcard":      {first: "/x/{id}", second: "/x/{rest...}"},
		"param vs literal":       {first: "/x/{id}", second: "/x/all"},
		"trailing slash differs": {first: "/x/{id}", second: "/x/{name}/"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			api := specbind.New(&recorder{}).NewAPI(mustSpec(t, petstore))
			require.NoError(t, api.AddOperation(specbind.Operation{Method: "GET", Path: tc.first, OperationID: "a", Handler: okHandler}))
			err := api.AddOperation(specbind.Operation{Method: "GET", Path: tc.second, OperationID: "b", Handler: okHandler})
			if tc.wantErr {
				require.ErrorIs(t, err, specbind.ErrDuplicateRoute)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAPI_AddOperation_invalid(t *testing.T) {
	t.Parallel()

	api := specbind.New(&recorder{}).NewAPI(mustSpec(t, petstore))

	err := api.AddOperation(specbind.Operation{Method: "GET", Path: "/pets", OperationID: "listPets"})
	require.ErrorIs(t, err, specbind.ErrUnknownOperation)

	err = api.AddOperation(specbind.Operation{Path: "/pets", OperationID: "listPets", Handler: okHandler})
	require.Error(t, err)
	assert.Equal(t, specbind.StateCreated, api.State())
}

func TestAPI_Routes_isCopy(t *testing.T) {
	t.Parallel()

	api := specbind.New(&recorder{}).NewAPI(mustSpec(t, petstore))
	require.NoError(t, api.AddSpecJSON())

	routes := api.Routes()
	routes[0].Path = "/hijacked"

	got := api.Routes()
	require.Len(t, got, 1)
	assert.Equal(t, "/v1/openapi.json", got[0].Path)
}

func TestAPI_Bind_backendError(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: errors.New("conflict")}
	api := specbind.New(rec).NewAPI(mustSpec(t, petstore))
	require.NoError(t, api.AddSpecJSON())

	err := api.Bind(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /v1/openapi.json")
	assert.Equal(t, specbind.StateRoutesRegistered, api.State())
}

func TestAPI_Bind_stopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	api := specbind.New(rec).NewAPI(mustSpec(t, petstore))
	require.NoError(t, api.AddOperation(specbind.Operation{Method: "GET", Path: "/pets", OperationID: "listPets", Handler: okHandler}))
	require.NoError(t, api.AddSpecJSON())

	rec.failOn = "GET /v1/openapi.json"
	err := api.Bind(rec)
	require.Error(t, err)
	assert.Equal(t, []string{"GET /v1/pets"}, rec.keys())

	rec.failOn = ""
	err = api.Bind(rec)
	require.ErrorIs(t, err, specbind.ErrBindFailed)
	assert.Equal(t, []string{"GET /v1/pets"}, rec.keys(), "a retry registers nothing twice")
	assert.Equal(t, specbind.StateRoutesRegistered, api.State())
}

func TestAPI_BasePath(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts []specbind.APIOption
		want string
	}{
		"from document":    {want: "/v1"},
		"override":         {opts: []specbind.APIOption{specbind.WithBasePath("/api/")}, want: "/api"},
		"missing slash":    {opts: []specbind.APIOption{specbind.WithBasePath("api")}, want: "/api"},
		"root":             {opts: []specbind.APIOption{specbind.WithBasePath("/")}, want: ""},
		"explicitly empty": {opts: []specbind.APIOption{specbind.WithBasePath("")}, want: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			api := specbind.New(&recorder{}).NewAPI(mustSpec(t, petstore), tc.opts...)
			assert.Equal(t, tc.want, api.BasePath())

			require.NoError(t, api.AddOperation(specbind.Operation{Method: "GET", Path: "/pets", OperationID: "listPets", Handler: okHandler}))
			assert.Equal(t, tc.want+"/pets", api.Routes()[0].Path)
		})
	}
}

func TestApp_AddAPI_routeTable(t *testing.T) {
	t.Parallel()

	operations := []string{
		"GET /v1/pets",
		"POST /v1/pets",
		"GET /v1/pets/{petId}",
		"GET /v1/secret",
	}

	tests := map[string]struct {
		options specbind.Options
		want    []string
	}{
		"defaults": {
			options: specbind.DefaultOptions(),
			want: append(append([]string(nil), operations...),
				"GET /v1/openapi.json",
				"GET /v1/ui",
				"GET /v1/ui/{filename...}",
			),
		},
		"operations only": {
			options: specbind.Options{},
			want:    operations,
		},
		"custom ui path and guard": {
			options: specbind.Options{SwaggerUI: true, ConsoleUIPath: "/docs/", AuthAllPaths: true},
			want: append(append([]string(nil), operations...),
				"GET /v1/docs",
				"GET /v1/docs/{filename...}",
				"* /v1/{path...}",
			),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			app := specbind.New(rec)
			api, err := app.AddAPI(mustSpec(t, petstore), specbind.Stub(specbind.Handlers{}), specbind.WithOptions(tc.options))
			require.NoError(t, err)

			assert.Equal(t, tc.want, rec.keys())
			assert.Equal(t, specbind.StateBound, api.State())
			assert.Equal(t, []*specbind.API{api}, app.APIs())
		})
	}
}

func TestApp_AddAPI_swaggerFileName(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	_, err := specbind.New(rec).AddAPI(mustSpec(t, guarded), specbind.Stub(specbind.Handlers{}))
	require.NoError(t, err)
	assert.Contains(t, rec.keys(), "GET /api/swagger.json")
}

func TestApp_AddAPI_unresolved(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := specbind.New(rec)
	_, err := app.AddAPI(mustSpec(t, petstore), specbind.Handlers{"listPets": okHandler})
	require.ErrorIs(t, err, specbind.ErrUnknownOperation)
	assert.Empty(t, rec.routes)
	assert.Empty(t, app.APIs())
}

func TestApp_installsFallback(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := specbind.New(rec)
	require.NotNil(t, rec.fallback)
	assert.Same(t, app.ErrorHandler(), rec.fallback)
	assert.Same(t, rec, app.Backend())

	reply := rec.fallback.Reply(specbind.HTTPStatusError(http.StatusNotFound))
	assert.Equal(t, http.StatusNotFound, reply.Status)
}
