package specbind

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"
)

// pipeline is the per-app request processing shared by every endpoint.
type pipeline struct {
	backend         string
	logger          *slog.Logger
	errors          *ErrorHandler
	evaluator       SecurityEvaluator
	limiter         *rateLimiter
	metrics         *Metrics
	requestIDHeader string
	maxBodySize     int64
	timeout         time.Duration
	secure          *SecureConfig
}

// Endpoint is a bound operation: the handler plus everything needed to turn
// a canonical request into exactly one reply.
type Endpoint struct {
	operationID string
	mimetype    string
	handler     HandlerFunc
	security    []SecurityRequirement
	definitions map[string]SecurityScheme
	limited     bool
	p           *pipeline
}

// OperationID returns the operationId served by the endpoint, or "" for
// internal endpoints.
func (e *Endpoint) OperationID() string { return e.operationID }

// Mimetype returns the endpoint's requested response mimetype.
func (e *Endpoint) Mimetype() string { return e.mimetype }

// Error normalizes an error the backend hit while translating the request.
func (e *Endpoint) Error(err error) *Reply { return e.p.errors.Reply(err) }

// Serve runs the request through the pipeline and returns the reply to
// write. Errors never escape: every failure is normalized into a problem
// reply. A nil reply means the handler wrote the native response itself.
func (e *Endpoint) Serve(req *Request) *Reply {
	start := time.Now()
	id := assignRequestID(req, e.p.requestIDHeader)

	reply := e.serve(req)

	status := 0
	if reply != nil {
		reply.Headers.Set(e.p.requestIDHeader, id)
		e.p.secure.apply(reply.Headers)
		status = reply.Status
	}
	elapsed := time.Since(start)
	logRequest(e.p.logger, req, e.operationID, id, status, elapsed)
	e.p.metrics.observe(e.p.backend, e.operationID, req.Method, status, elapsed)

	return reply
}

func (e *Endpoint) serve(req *Request) *Reply {
	result, err := e.invoke(req)
	if err != nil {
		return e.p.errors.Reply(err)
	}

	reply, err := Coerce(result, e.mimetype, req.NativeResponse())
	if err != nil {
		return e.p.errors.Reply(err)
	}
	return reply
}

func (e *Endpoint) invoke(req *Request) (result Result, err error) {
	if e.limited {
		if err := e.p.limiter.allow(req); err != nil {
			return nil, err
		}
	}

	if len(e.security) > 0 && e.p.evaluator != nil {
		if err := e.p.evaluator.Evaluate(req.Ctx(), req, e.security, e.definitions); err != nil {
			return nil, err
		}
	}

	cancel := withDeadline(req, e.p.timeout)
	defer cancel()

	// A late result is discarded unless the handler already wrote the
	// native response itself.
	defer func() {
		if _, written := result.(nativeResult); written || err != nil || e.p.timeout <= 0 {
			return
		}
		if errors.Is(req.Ctx().Err(), context.DeadlineExceeded) {
			result, err = nil, context.DeadlineExceeded
		}
	}()

	defer func() {
		if rec := recover(); rec != nil {
			e.p.logger.Error("panic recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
				"method", req.Method,
				"path", req.URL,
				"operation_id", e.operationID,
			)
			result, err = nil, PanicError(rec)
		}
	}()

	return e.handler(req.Ctx(), req)
}
