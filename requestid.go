package specbind

import "github.com/google/uuid"

// RequestIDKey is the Context key holding the request ID.
const RequestIDKey = "request_id"

// DefaultRequestIDHeader carries the request ID in and out.
const DefaultRequestIDHeader = "X-Request-ID"

// RequestID returns the request ID assigned to req, or "".
func RequestID(req *Request) string {
	id, _ := Value[string](req.Context, RequestIDKey)
	return id
}

// assignRequestID reads the ID from header or generates a UUID, and stores it
// in the request context so native middleware sees it too.
func assignRequestID(req *Request, header string) string {
	id := req.Headers.Get(header)
	if id == "" {
		id = uuid.NewString()
	}
	req.Context.Set(RequestIDKey, id)
	return id
}
