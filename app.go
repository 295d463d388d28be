package specbind

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// App owns one backend and the specifications mounted on it.
type App struct {
	backend Backend
	p       *pipeline

	mu   sync.Mutex
	apis []*API
}

// AppOption configures an App.
type AppOption func(*appConfig)

type appConfig struct {
	logger          *slog.Logger
	evaluator       SecurityEvaluator
	rateLimit       *RateLimitConfig
	metrics         *Metrics
	requestIDHeader string
	maxBodySize     int64
	timeout         time.Duration
	secure          *SecureConfig
}

// WithLogger sets the logger passed to every mount, endpoint and backend
// fallback. The default discards everything.
func WithLogger(l *slog.Logger) AppOption {
	return func(c *appConfig) {
		c.logger = l
	}
}

// WithSecurityEvaluator sets the evaluator for operation security
// requirements. Without one, security requirements are not enforced.
func WithSecurityEvaluator(e SecurityEvaluator) AppOption {
	return func(c *appConfig) {
		c.evaluator = e
	}
}

// WithRateLimit enables per-client rate limiting of operation routes.
func WithRateLimit(cfg RateLimitConfig) AppOption {
	return func(c *appConfig) {
		c.rateLimit = &cfg
	}
}

// WithMetrics records request metrics into m.
func WithMetrics(m *Metrics) AppOption {
	return func(c *appConfig) {
		c.metrics = m
	}
}

// WithRequestIDHeader sets the header carrying the request ID.
// Default: "X-Request-ID".
func WithRequestIDHeader(header string) AppOption {
	return func(c *appConfig) {
		c.requestIDHeader = header
	}
}

// New creates an App serving on backend and installs the error handler as the
// backend's fallback.
func New(backend Backend, opts ...AppOption) *App {
	cfg := &appConfig{
		logger:          discardLogger(),
		requestIDHeader: DefaultRequestIDHeader,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger.With("backend", backend.Name())
	errs := NewErrorHandler(logger)
	errs.metrics = cfg.metrics
	errs.backend = backend.Name()

	p := &pipeline{
		backend:         backend.Name(),
		logger:          logger,
		errors:          errs,
		evaluator:       cfg.evaluator,
		metrics:         cfg.metrics,
		requestIDHeader: cfg.requestIDHeader,
		maxBodySize:     cfg.maxBodySize,
		timeout:         cfg.timeout,
		secure:          cfg.secure,
	}
	if cfg.rateLimit != nil {
		p.limiter = newRateLimiter(*cfg.rateLimit)
	}

	backend.Fallback(errs)
	return &App{backend: backend, p: p}
}

// Backend returns the backend the app serves on.
func (a *App) Backend() Backend { return a.backend }

// ErrorHandler returns the app's error handler.
func (a *App) ErrorHandler() *ErrorHandler { return a.p.errors }

// APIs returns the mounts added with AddAPI, in order.
func (a *App) APIs() []*API {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*API(nil), a.apis...)
}

// NewAPI creates an empty mount for spec. Routes are added with the API's
// Add methods and the mount is finished with Bind(app.Backend()).
func (a *App) NewAPI(spec Specification, opts ...APIOption) *API {
	return newAPI(spec, a.p, opts...)
}

// AddAPI mounts spec: every operation is resolved through resolver and
// registered, auxiliary endpoints are added per options, and the mount is
// bound to the backend.
func (a *App) AddAPI(spec Specification, resolver Resolver, opts ...APIOption) (*API, error) {
	api := a.NewAPI(spec, opts...)

	secured := false
	for _, op := range spec.Operations() {
		fn, err := resolver.Resolve(op.OperationID)
		if err != nil {
			return nil, fmt.Errorf("resolve %s %s: %w", op.Method, op.Path, err)
		}
		op.Handler = fn
		if err := api.AddOperation(op); err != nil {
			return nil, err
		}
		secured = secured || len(op.Security) > 0
	}
	secured = secured || len(spec.Security()) > 0
	if secured && a.p.evaluator == nil {
		a.p.logger.Warn("specification declares security but no evaluator is configured; security is not enforced")
	}

	options := api.Options()
	if options.SwaggerJSON {
		if err := api.AddSpecJSON(); err != nil {
			return nil, err
		}
	}
	if options.SwaggerUI {
		if err := api.AddConsoleUI(); err != nil {
			return nil, err
		}
	}
	if options.AuthAllPaths {
		if err := api.AddAuthOnNotFound(nil); err != nil {
			return nil, err
		}
	}

	if err := api.Bind(a.backend); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.apis = append(a.apis, api)
	a.mu.Unlock()
	return api, nil
}
