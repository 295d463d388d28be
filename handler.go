package specbind

import (
	"context"
	"net/http"
)

// HandlerFunc is the canonical operation handler. Handlers never see backend
// request or response types.
type HandlerFunc func(ctx context.Context, req *Request) (Result, error)

// Result is the closed set of shapes a handler may return. The variants are
// built with Data, Status, StatusHeaders and Native, or by returning a
// *Response. A nil Result behaves like Data(nil).
type Result interface {
	isResult()
}

type dataResult struct {
	data any
}

type statusResult struct {
	data   any
	status int
}

type headersResult struct {
	data    any
	status  int
	headers http.Header
}

type nativeResult struct {
	handle any
}

func (dataResult) isResult()    {}
func (statusResult) isResult()  {}
func (headersResult) isResult() {}
func (nativeResult) isResult()  {}
func (*Response) isResult()     {}

// Data returns a bare payload, answered with 200 OK.
func Data(v any) Result {
	return dataResult{data: v}
}

// Status returns a payload with an explicit status code.
func Status(v any, code int) Result {
	return statusResult{data: v, status: code}
}

// StatusHeaders returns a payload with an explicit status code and headers.
func StatusHeaders(v any, code int, h http.Header) Result {
	return headersResult{data: v, status: code, headers: h}
}

// Native signals that the handler already wrote the backend's native
// response. The handle must be the value returned by Request.NativeResponse.
func Native(handle any) Result {
	return nativeResult{handle: handle}
}

type noContent struct {
	name string
}

func (n *noContent) String() string { return n.name }

// NoContent is the payload for "respond with an explicitly empty body". It is
// distinct from a nil payload, which leaves the body unset.
var NoContent = &noContent{name: "NoContent"}

func isNoContent(v any) bool {
	nc, ok := v.(*noContent)
	return ok && nc == NoContent
}
