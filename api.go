package specbind

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// State is the lifecycle position of a mount.
type State int

// Mount states. Routes may be added while Created or RoutesRegistered; Bind
// is a one-way transition to Bound after which the route table is frozen.
const (
	StateCreated State = iota
	StateRoutesRegistered
	StateBound
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRoutesRegistered:
		return "routes-registered"
	case StateBound:
		return "bound"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options gates the auxiliary endpoints of a mount.
type Options struct {
	SwaggerJSON      bool   // serve {base}/swagger.json or {base}/openapi.json
	SwaggerUI        bool   // serve the console UI
	ConsoleUIPath    string // default: "/ui"
	ConsoleUIFromDir string // static assets directory; empty uses a CDN
	AuthAllPaths     bool   // guard unmatched paths with the document security
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		SwaggerJSON:   true,
		SwaggerUI:     true,
		ConsoleUIPath: "/ui",
	}
}

// APIOption configures a mount.
type APIOption func(*apiConfig)

type apiConfig struct {
	basePath    string
	hasBasePath bool
	options     Options
}

// WithBasePath overrides the base path declared by the document.
func WithBasePath(path string) APIOption {
	return func(c *apiConfig) {
		c.basePath = path
		c.hasBasePath = true
	}
}

// WithOptions sets the auxiliary endpoint options.
func WithOptions(o Options) APIOption {
	return func(c *apiConfig) {
		if o.ConsoleUIPath == "" {
			o.ConsoleUIPath = "/ui"
		}
		c.options = o
	}
}

// API is one specification mounted on one backend. Its route table is
// appended to while registering and is read-only once bound.
type API struct {
	spec     Specification
	basePath string
	options  Options
	p        *pipeline
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	routes  []Route
	index   map[string]string
	bindErr error
}

func newAPI(spec Specification, p *pipeline, opts ...APIOption) *API {
	cfg := &apiConfig{options: DefaultOptions()}
	for _, opt := range opts {
		opt(cfg)
	}

	basePath := spec.BasePath()
	if cfg.hasBasePath {
		basePath = cfg.basePath
	}
	basePath = canonicalBasePath(basePath)

	return &API{
		spec:     spec,
		basePath: basePath,
		options:  cfg.options,
		p:        p,
		logger:   p.logger.With("base_path", basePath),
		index:    make(map[string]string),
	}
}

// BasePath returns the path every route of the mount is prefixed with.
func (a *API) BasePath() string { return a.basePath }

// Specification returns the mounted document.
func (a *API) Specification() Specification { return a.spec }

// Options returns the mount's auxiliary endpoint options.
func (a *API) Options() Options { return a.options }

// State returns the current lifecycle state.
func (a *API) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Routes returns a copy of the route table in registration order.
func (a *API) Routes() []Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Route(nil), a.routes...)
}

// AddOperation registers one operation. Operations without their own
// security inherit the document's.
func (a *API) AddOperation(op Operation) error {
	if op.Handler == nil {
		return fmt.Errorf("operation %q: %w: no handler", op.OperationID, ErrUnknownOperation)
	}
	method := normalizeMethod(op.Method)
	if method == "" {
		return fmt.Errorf("operation %q: missing method", op.OperationID)
	}

	security := op.Security
	if security == nil {
		security = a.spec.Security()
	}

	a.logger.Debug("adding operation",
		"method", method,
		"path", op.Path,
		"operation_id", op.OperationID,
	)

	return a.addRoute(Route{
		Method:      method,
		Path:        JoinPath(a.basePath, op.Path),
		OperationID: op.OperationID,
		Endpoint: &Endpoint{
			operationID: op.OperationID,
			mimetype:    op.Mimetype(),
			handler:     op.Handler,
			security:    security,
			definitions: a.spec.SecurityDefinitions(),
			limited:     true,
			p:           a.p,
		},
	})
}

// AddSpecJSON registers GET {base}/swagger.json (Swagger 2) or
// {base}/openapi.json (OpenAPI 3). The document is serialized once, here.
func (a *API) AddSpecJSON() error {
	body, err := Dumps(a.spec.Document())
	if err != nil {
		return fmt.Errorf("serialize specification: %w", err)
	}

	path := JoinPath(a.basePath, specFileName(a.spec.Version()))
	a.logger.Debug("adding spec json", "path", path)

	return a.addRoute(Route{
		Method:   http.MethodGet,
		Path:     path,
		Endpoint: a.internalEndpoint(specResource(body)),
	})
}

// AddConsoleUI registers the interactive documentation UI under
// {base}{ConsoleUIPath}.
func (a *API) AddConsoleUI() error {
	ui, err := newConsoleUI(a.spec.Title(), a.basePath, a.options, a.spec.Version())
	if err != nil {
		return err
	}

	uiPath := JoinPath(a.basePath, a.options.ConsoleUIPath)
	a.logger.Debug("adding console ui", "path", uiPath)

	routes := []Route{
		{Method: http.MethodGet, Path: trimSlash(uiPath), Endpoint: a.internalEndpoint(ui.redirect)},
		{Method: http.MethodGet, Path: JoinPath(uiPath, "{filename...}"), Endpoint: a.internalEndpoint(ui.serve)},
	}
	for _, r := range routes {
		if err := a.addRoute(r); err != nil {
			return err
		}
	}
	return nil
}

// AddAuthOnNotFound registers a catch-all route that evaluates security
// before answering 404, so unauthenticated clients cannot probe which paths
// exist. A nil security uses the document's.
func (a *API) AddAuthOnNotFound(security []SecurityRequirement) error {
	if security == nil {
		security = a.spec.Security()
	}

	path := JoinPath(a.basePath, "{path...}")
	a.logger.Debug("adding auth on not found", "path", path)

	ep := a.internalEndpoint(notFound)
	ep.security = security
	return a.addRoute(Route{Path: path, Endpoint: ep})
}

// Bind registers the route table into backend in order and freezes the
// mount. It can be called once.
//
// Bind stops at the first route the backend rejects. Routes registered
// before it stay on the backend, which should be discarded; later calls
// return the same error wrapped in ErrBindFailed.
func (a *API) Bind(backend Backend) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateBound {
		return ErrMountBound
	}
	if a.bindErr != nil {
		return fmt.Errorf("%w: %w", ErrBindFailed, a.bindErr)
	}

	for _, r := range a.routes {
		if err := backend.Route(r); err != nil {
			a.bindErr = fmt.Errorf("route %s: %w", r.Key(), err)
			return a.bindErr
		}
	}

	a.state = StateBound
	a.logger.Info("api bound", "backend", backend.Name(), "routes", len(a.routes))
	return nil
}

func (a *API) addRoute(r Route) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateBound {
		return fmt.Errorf("add %s: %w", r.Key(), ErrMountBound)
	}
	if prev, ok := a.index[r.shape()]; ok {
		return fmt.Errorf("%w: %s conflicts with %s", ErrDuplicateRoute, r.Key(), prev)
	}

	a.index[r.shape()] = r.Key()
	a.routes = append(a.routes, r)
	a.state = StateRoutesRegistered
	return nil
}

func (a *API) internalEndpoint(h HandlerFunc) *Endpoint {
	return &Endpoint{
		mimetype:    DefaultMimetype,
		handler:     h,
		definitions: a.spec.SecurityDefinitions(),
		p:           a.p,
	}
}

func canonicalBasePath(p string) string {
	p = trimSlash(p)
	if p == "/" {
		return ""
	}
	if p != "" && p[0] != '/' {
		p = "/" + p
	}
	return p
}

func trimSlash(p string) string {
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

func specFileName(version int) string {
	if version >= 3 {
		return "openapi.json"
	}
	return "swagger.json"
}
