package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	fastbackend "github.com/bjaus/specbind/backend/fasthttp"
)

const shutdownTimeout = 30 * time.Second

func addServeCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured specification.",
		Long: "Mounts the specification on the configured backend and serves it until interrupted. " +
			"Prometheus metrics are exposed on /metrics.",
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	parent.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	addr := e.cfg.Server.Addr
	metrics := promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})

	e.logger.InfoContext(ctx, "listening",
		"addr", addr,
		"backend", e.backend.Name(),
		"base_path", e.api.BasePath(),
		"routes", len(e.api.Routes()),
	)

	if fb, ok := e.backend.(*fastbackend.Backend); ok {
		if len(e.cfg.CORS.AllowedOrigins) > 0 {
			e.logger.WarnContext(ctx, "cors is not applied on the fasthttp backend")
		}
		fb.Router().GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(metrics))
		return serveFast(ctx, addr, fb.Handler)
	}

	h, ok := e.backend.(http.Handler)
	if !ok {
		return fmt.Errorf("backend %s is not an http.Handler", e.backend.Name())
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.Handle("/", h)

	var root http.Handler = mux
	if origins := e.cfg.CORS.AllowedOrigins; len(origins) > 0 {
		root = cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(mux)
	}
	return serveHTTP(ctx, addr, root)
}

// serveHTTP blocks until ctx is cancelled, then shuts down gracefully.
func serveHTTP(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func serveFast(ctx context.Context, addr string, h fasthttp.RequestHandler) error {
	srv := &fasthttp.Server{
		Handler:      h,
		Name:         "specbind",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.ShutdownWithContext(shutdownCtx)
	}
}
