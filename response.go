package specbind

import "net/http"

// Response is a canonical response, returned by handlers that need full
// control and produced by error normalization.
type Response struct {
	StatusCode  int // 0 means 200
	Mimetype    string
	ContentType string // wins over Mimetype when set
	Body        any
	Headers     http.Header
}

// Reply is a fully coerced response, ready for a backend to write. Every
// field is determined: Status is a known HTTP status, Body is nil (absent),
// empty (NoContent) or serialized bytes, and Headers is never nil.
type Reply struct {
	Status      int
	StatusLine  string
	ContentType string
	Body        []byte
	Headers     http.Header
}

// HasBody reports whether the reply carries a body, including an
// explicitly empty one.
func (r *Reply) HasBody() bool {
	return r.Body != nil
}
