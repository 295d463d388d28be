// Command specbind serves an OpenAPI 3 or Swagger 2 document on a choice of
// HTTP backends.
//
// Run:
//
//	go run ./cmd/specbind serve --spec api.yaml --backend chi
//
// Then explore:
//
//	GET http://localhost:8080/{basePath}/openapi.json   document
//	GET http://localhost:8080/{basePath}/ui/            console UI
//	GET http://localhost:8080/metrics                   Prometheus metrics
//
// Operations named "health" and "echo" are served by built-in handlers;
// every other operation answers 501 until implemented.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "err", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "specbind",
		Short:        "Serve an OpenAPI or Swagger document on a pluggable HTTP backend.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to a YAML configuration file")
	root.PersistentFlags().String("backend", "", "backend to serve on: nethttp, chi, gorilla, fasthttp or gin")
	root.PersistentFlags().String("spec", "", "path to the specification document")

	addServeCommandTo(root)
	addRoutesCommandTo(root)
	return root
}
