package specbind

import (
	"fmt"
	"net/http"
)

// WithMaxBodySize limits the request body backends read for an operation.
// Larger bodies are answered with 413 before the handler runs. Zero means
// unlimited.
func WithMaxBodySize(maxBytes int64) AppOption {
	return func(c *appConfig) {
		c.maxBodySize = maxBytes
	}
}

// MaxBodySize returns the request body limit in bytes, or 0 for none.
func (e *Endpoint) MaxBodySize() int64 { return e.p.maxBodySize }

// BodyTooLarge returns the 413 error for a body over limit bytes.
func BodyTooLarge(limit int64) error {
	tooLarge := HTTPStatusError(http.StatusRequestEntityTooLarge)
	return &ProblemError{
		Status: tooLarge.Status,
		Title:  tooLarge.Name,
		Detail: fmt.Sprintf("request body exceeds %d bytes", limit),
	}
}
