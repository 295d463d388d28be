package specbind

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net/http"
)

// ProblemContentType is the media type of problem responses.
const ProblemContentType = "application/problem+json"

// ProblemDetail is an RFC 9457 problem details body.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Detail     string         `json:"detail,omitempty"`
	Status     int            `json:"status"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"-"`
}

// MarshalJSON merges extension members into the top-level object.
func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	type plain ProblemDetail
	if len(p.Extensions) == 0 {
		return json.Marshal(plain(p))
	}

	m := make(map[string]any, len(p.Extensions)+5)
	maps.Copy(m, p.Extensions)
	m["type"] = p.Type
	m["title"] = p.Title
	m["status"] = p.Status
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	return json.Marshal(m)
}

// Problem builds a problem Response. An empty title defaults to the status
// reason phrase.
func Problem(status int, title, detail string) *Response {
	return (&ProblemError{Status: status, Title: title, Detail: detail}).ToResponse()
}

// ProblemError is a typed error carrying every field of a problem response.
type ProblemError struct {
	Type       string
	Title      string
	Detail     string
	Status     int
	Instance   string
	Headers    http.Header
	Extensions map[string]any
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemError) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemError) StatusCode() int { return p.Status }

// ToResponse converts the problem into a canonical Response. Statuses outside
// 400..599 become 500 and take its title.
func (p *ProblemError) ToResponse() *Response {
	status, title := p.Status, p.Title
	if status < 400 || status > 599 || http.StatusText(status) == "" {
		status, title = http.StatusInternalServerError, ""
	}
	if title == "" {
		title = http.StatusText(status)
	}
	typ := p.Type
	if typ == "" {
		typ = "about:blank"
	}

	return &Response{
		StatusCode: status,
		Mimetype:   ProblemContentType,
		Headers:    p.Headers.Clone(),
		Body: ProblemDetail{
			Type:       typ,
			Title:      title,
			Detail:     p.Detail,
			Status:     status,
			Instance:   p.Instance,
			Extensions: p.Extensions,
		},
	}
}

// ErrorHandler normalizes errors into problem responses. It is installed
// once per backend as the fallback for every error kind.
type ErrorHandler struct {
	logger  *slog.Logger
	metrics *Metrics
	backend string
}

// NewErrorHandler creates an ErrorHandler logging unrecognized errors to logger.
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = discardLogger()
	}
	return &ErrorHandler{logger: logger}
}

// Handle maps err to a problem Response:
//   - *ProblemError is converted with its own fields
//   - *HTTPError becomes a problem with its status, name and description
//   - an expired handler deadline becomes 503
//   - anything else becomes a generic 500 without leaking the error text
func (h *ErrorHandler) Handle(err error) *Response {
	var pe *ProblemError
	if errors.As(err, &pe) {
		return pe.ToResponse()
	}

	var he *HTTPError
	if errors.As(err, &he) {
		return Problem(he.Status, he.Name, he.Description)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		unavailable := HTTPStatusError(http.StatusServiceUnavailable)
		return Problem(unavailable.Status, unavailable.Name, unavailable.Description)
	}

	h.logger.Error("unhandled error", "err", err)
	ise := HTTPStatusError(http.StatusInternalServerError)
	return Problem(ise.Status, ise.Name, ise.Description)
}

// Reply normalizes err and coerces the result, ready for a backend to write.
func (h *ErrorHandler) Reply(err error) *Reply {
	reply, cerr := Coerce(h.Handle(err), ProblemContentType, nil)
	if cerr != nil {
		h.logger.Error("problem response could not be coerced", "err", cerr)
		reply = internalErrorReply()
	}
	h.metrics.problem(h.backend, reply.Status)
	return reply
}

func internalErrorReply() *Reply {
	ise := HTTPStatusError(http.StatusInternalServerError)
	body, _ := Dumps(ProblemDetail{Type: "about:blank", Title: ise.Name, Detail: ise.Description, Status: ise.Status}) //nolint:errchkjson // static struct
	line, _ := StatusLine(ise.Status)                                                                                  //nolint:errcheck // known status
	return &Reply{
		Status:      ise.Status,
		StatusLine:  line,
		ContentType: ProblemContentType,
		Body:        body,
		Headers:     http.Header{},
	}
}
