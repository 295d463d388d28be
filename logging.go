package specbind

import (
	"log/slog"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// logRequest logs one served request. status is 0 for passthrough responses.
func logRequest(logger *slog.Logger, req *Request, operationID, requestID string, status int, latency time.Duration) {
	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("path", req.URL),
		slog.Int("status", status),
		slog.Duration("latency", latency),
		slog.String("remote", req.RemoteAddr),
	}
	if operationID != "" {
		attrs = append(attrs, slog.String("operation_id", operationID))
	}
	if requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	logger.LogAttrs(req.Ctx(), slog.LevelInfo, "request", attrs...)
}
