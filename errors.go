package specbind

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors.
var (
	ErrInvalidStatus    = errors.New("invalid status code")
	ErrMountBound       = errors.New("mount is bound to a backend")
	ErrDuplicateRoute   = errors.New("duplicate route")
	ErrBindFailed       = errors.New("mount failed to bind")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrPanic            = errors.New("handler panicked")
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// HTTPError is a recognized HTTP exception: a status with its standard name
// and a human-readable description.
type HTTPError struct {
	Status      int
	Name        string
	Description string
}

// Error returns the description (or name if the description is empty).
func (e *HTTPError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Name
}

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an HTTPError for status with a custom description.
func Error(status int, description string) error {
	return &HTTPError{Status: status, Name: http.StatusText(status), Description: description}
}

// Errorf returns an HTTPError for status with a formatted description.
func Errorf(status int, format string, args ...any) error {
	return Error(status, fmt.Sprintf(format, args...))
}

// HTTPStatusError returns the catalog HTTPError for status. Statuses outside
// the catalog get the standard reason phrase and an empty description.
func HTTPStatusError(status int) *HTTPError {
	return &HTTPError{
		Status:      status,
		Name:        http.StatusText(status),
		Description: httpDescriptions[status],
	}
}

// KnownHTTPError reports whether status belongs to the catalog of recognized
// HTTP exceptions.
func KnownHTTPError(status int) bool {
	_, ok := httpDescriptions[status]
	return ok
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// PanicError wraps a recovered panic value as an error matching ErrPanic.
func PanicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, rec)
}

// CoercionError reports a handler result that cannot be turned into a
// response: an unknown status code or a body that cannot be serialized. It is
// a programming error and is answered with a generic 500.
type CoercionError struct {
	Reason string
	Err    error
}

func (e *CoercionError) Error() string {
	if e.Err != nil {
		return "coerce response: " + e.Reason + ": " + e.Err.Error()
	}
	return "coerce response: " + e.Reason
}

func (e *CoercionError) Unwrap() error { return e.Err }

var httpDescriptions = map[int]string{
	http.StatusBadRequest:                   "The browser (or proxy) sent a request that this server could not understand.",
	http.StatusUnauthorized:                 "The server could not verify that you are authorized to access the URL requested. You either supplied the wrong credentials (e.g. a bad password), or your browser doesn't understand how to supply the credentials required.",
	http.StatusForbidden:                    "You don't have the permission to access the requested resource. It is either read-protected or not readable by the server.",
	http.StatusNotFound:                     "The requested URL was not found on the server. If you entered the URL manually please check your spelling and try again.",
	http.StatusMethodNotAllowed:             "The method is not allowed for the requested URL.",
	http.StatusNotAcceptable:                "The resource identified by the request is only capable of generating response entities which have content characteristics not acceptable according to the accept headers sent in the request.",
	http.StatusRequestTimeout:               "The server closed the network connection because the browser didn't finish the request within the specified time.",
	http.StatusConflict:                     "A conflict happened while processing the request. The resource might have been modified while the request was being processed.",
	http.StatusGone:                         "The requested URL is no longer available on this server and there is no forwarding address.",
	http.StatusLengthRequired:               "A request with this method requires a valid Content-Length header.",
	http.StatusPreconditionFailed:           "The precondition on the request for the URL failed positive evaluation.",
	http.StatusRequestEntityTooLarge:        "The data value transmitted exceeds the capacity limit.",
	http.StatusRequestURITooLong:            "The length of the requested URL exceeds the capacity limit for this server. The request cannot be processed.",
	http.StatusUnsupportedMediaType:         "The server does not support the media type transmitted in the request.",
	http.StatusRequestedRangeNotSatisfiable: "The server cannot provide the requested range.",
	http.StatusExpectationFailed:            "The server could not meet the requirements of the Expect header.",
	http.StatusTeapot:                       "This server is a teapot, not a coffee machine.",
	http.StatusUnprocessableEntity:          "The request was well-formed but was unable to be followed due to semantic errors.",
	http.StatusLocked:                       "The resource that is being accessed is locked.",
	http.StatusFailedDependency:             "The method could not be performed on the resource because the requested action depended on another action and that action failed.",
	http.StatusPreconditionRequired:         "This request is required to be conditional; try using \"If-Match\" or \"If-Unmodified-Since\".",
	http.StatusTooManyRequests:              "This user has exceeded an allotted request count. Try again later.",
	http.StatusRequestHeaderFieldsTooLarge:  "One or more header fields exceeds the maximum size.",
	http.StatusUnavailableForLegalReasons:   "Unavailable for legal reasons.",
	http.StatusInternalServerError:          "The server encountered an internal error and was unable to complete your request. Either the server is overloaded or there is an error in the application.",
	http.StatusNotImplemented:               "The server does not support the action requested by the browser.",
	http.StatusBadGateway:                   "The proxy server received an invalid response from an upstream server.",
	http.StatusServiceUnavailable:           "The server is temporarily unable to service your request due to maintenance downtime or capacity problems. Please try again later.",
	http.StatusGatewayTimeout:               "The connection to an upstream server timed out.",
	http.StatusHTTPVersionNotSupported:      "The server does not support the HTTP protocol version used in the request.",
}
