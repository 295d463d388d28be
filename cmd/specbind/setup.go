package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/backend/chi"
	fastbackend "github.com/bjaus/specbind/backend/fasthttp"
	ginbackend "github.com/bjaus/specbind/backend/gin"
	"github.com/bjaus/specbind/backend/gorilla"
	"github.com/bjaus/specbind/backend/nethttp"
	"github.com/bjaus/specbind/internal/config"
	"github.com/bjaus/specbind/security"
	"github.com/bjaus/specbind/spec"
)

// env is everything a command needs once configuration is loaded.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	backend  specbind.Backend
	app      *specbind.App
	api      *specbind.API
}

// setup loads configuration, builds the backend and mounts the document.
func setup(cmd *cobra.Command) (*env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	backendName, _ := cmd.Flags().GetString("backend")
	specFile, _ := cmd.Flags().GetString("spec")

	cfg, err := config.Load(configPath,
		config.WithOverride("server.backend", backendName),
		config.WithOverride("api.spec_file", specFile),
	)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Server.LogLevel)

	doc, err := spec.Load(cfg.API.SpecFile)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg.Server.Backend)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := specbind.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	evaluator := security.New(
		security.WithAPIKeys(cfg.Security.APIKeys...),
		security.WithJWTSecret([]byte(cfg.Security.JWTSecret)),
		security.WithLogger(logger),
	)

	opts := []specbind.AppOption{
		specbind.WithLogger(logger),
		specbind.WithSecurityEvaluator(evaluator),
		specbind.WithMetrics(metrics),
	}
	if cfg.RateLimit.RPS > 0 {
		opts = append(opts, specbind.WithRateLimit(specbind.RateLimitConfig{
			Rate:  cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		}))
	}
	app := specbind.New(backend, opts...)

	apiOpts := []specbind.APIOption{
		specbind.WithOptions(specbind.Options{
			SwaggerJSON:      cfg.API.SwaggerJSON,
			SwaggerUI:        cfg.API.SwaggerUI,
			ConsoleUIPath:    cfg.API.ConsoleUIPath,
			ConsoleUIFromDir: cfg.API.ConsoleUIFromDir,
			AuthAllPaths:     cfg.API.AuthAllPaths,
		}),
	}
	if cfg.API.BasePath != "" {
		apiOpts = append(apiOpts, specbind.WithBasePath(cfg.API.BasePath))
	}

	api, err := app.AddAPI(doc, specbind.Stub(builtinHandlers()), apiOpts...)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		backend:  backend,
		app:      app,
		api:      api,
	}, nil
}

func newBackend(name string) (specbind.Backend, error) {
	switch name {
	case "nethttp":
		return nethttp.New(), nil
	case "chi":
		return chi.New(), nil
	case "gorilla":
		return gorilla.New(), nil
	case "fasthttp":
		return fastbackend.New(), nil
	case "gin":
		return ginbackend.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
