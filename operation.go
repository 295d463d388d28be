package specbind

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultMimetype is the response mimetype of operations that declare none.
const DefaultMimetype = "application/json"

// Operation binds one declared (method, path) pair to a handler. It is built
// once when the specification is loaded and shared read-only afterwards.
type Operation struct {
	Method      string
	Path        string
	OperationID string
	Produces    []string
	Security    []SecurityRequirement // nil inherits the document's security
	Handler     HandlerFunc
}

// Mimetype returns the operation's requested response mimetype.
func (o Operation) Mimetype() string {
	if len(o.Produces) > 0 && o.Produces[0] != "" {
		return o.Produces[0]
	}
	return DefaultMimetype
}

// Specification is a loaded API document as seen by a mount.
type Specification interface {
	// Version is the major document version: 2 for Swagger, 3 for OpenAPI.
	Version() int
	BasePath() string
	Title() string
	// Document is the decoded document, served as-is by the document endpoint.
	Document() any
	// Operations lists every declared operation. Handler is left nil.
	Operations() []Operation
	Security() []SecurityRequirement
	SecurityDefinitions() map[string]SecurityScheme
}

// Resolver maps an operationId to its handler.
type Resolver interface {
	Resolve(operationID string) (HandlerFunc, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(operationID string) (HandlerFunc, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(operationID string) (HandlerFunc, error) { return f(operationID) }

// Handlers is a Resolver backed by a map keyed by operationId.
type Handlers map[string]HandlerFunc

// Resolve implements Resolver.
func (h Handlers) Resolve(operationID string) (HandlerFunc, error) {
	fn, ok := h[operationID]
	if !ok || fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, operationID)
	}
	return fn, nil
}

// NotImplemented is a handler answering 501, for operations that exist in a
// document but have no implementation yet.
func NotImplemented(_ context.Context, _ *Request) (Result, error) {
	return nil, HTTPStatusError(http.StatusNotImplemented)
}

// Stub wraps r so unknown operationIds resolve to NotImplemented instead of
// failing the mount.
func Stub(r Resolver) Resolver {
	return ResolverFunc(func(operationID string) (HandlerFunc, error) {
		fn, err := r.Resolve(operationID)
		if err != nil {
			return NotImplemented, nil //nolint:nilerr // unknown operations are stubbed
		}
		return fn, nil
	})
}

func normalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}
