package specbind

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
)

// Coerce converts a handler result into a fully determined Reply. mimetype is
// the operation's requested mimetype; native is the backend's native response
// handle for this request.
//
// A nil Reply with a nil error means the handler returned Native with the
// request's own handle and has already written the response.
func Coerce(result Result, mimetype string, native any) (*Reply, error) {
	switch r := result.(type) {
	case nil:
		return coerceData(nil, http.StatusOK, nil, mimetype)
	case nativeResult:
		if !sameHandle(r.handle, native) {
			return nil, &CoercionError{Reason: "passthrough handle does not belong to this request"}
		}
		return nil, nil
	case *Response:
		if r == nil {
			return coerceData(nil, http.StatusOK, nil, mimetype)
		}
		return coerceResponse(r)
	case dataResult:
		return coerceData(r.data, http.StatusOK, nil, mimetype)
	case statusResult:
		return coerceData(r.data, r.status, nil, mimetype)
	case headersResult:
		return coerceData(r.data, r.status, r.headers, mimetype)
	default:
		return nil, &CoercionError{Reason: fmt.Sprintf("unsupported result type %T", result)}
	}
}

func coerceResponse(r *Response) (*Reply, error) {
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	line, err := StatusLine(status)
	if err != nil {
		return nil, &CoercionError{Reason: "invalid status code", Err: err}
	}

	contentType := r.ContentType
	if contentType == "" {
		contentType = r.Mimetype
	}

	reply := &Reply{
		Status:      status,
		StatusLine:  line,
		ContentType: contentType,
		Headers:     cloneHeader(r.Headers),
	}

	switch body := r.Body.(type) {
	case nil:
	case []byte:
		reply.Body = body
	case json.RawMessage:
		reply.Body = body
	case string:
		reply.Body = []byte(body)
	default:
		if isNoContent(body) {
			reply.Body = []byte{}
			break
		}
		encoded, err := Dumps(body)
		if err != nil {
			return nil, &CoercionError{Reason: "body is not serializable", Err: err}
		}
		reply.Body = encoded
	}

	return reply, nil
}

func coerceData(data any, status int, headers http.Header, mimetype string) (*Reply, error) {
	line, err := StatusLine(status)
	if err != nil {
		return nil, &CoercionError{Reason: "invalid status code", Err: err}
	}

	reply := &Reply{
		Status:      status,
		StatusLine:  line,
		ContentType: mimetype,
		Headers:     cloneHeader(headers),
	}

	switch {
	case isNoContent(data):
		reply.Body = []byte{}
	case data != nil:
		body, err := jsonify(data, mimetype)
		if err != nil {
			return nil, &CoercionError{Reason: "body is not serializable", Err: err}
		}
		reply.Body = body
	}

	return reply, nil
}

// jsonify serializes data as JSON when mimetype is a JSON type or data is
// not already text or bytes. Raw bytes are treated as pre-serialized even
// under a JSON mimetype.
func jsonify(data any, mimetype string) ([]byte, error) {
	switch v := data.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		if !IsJSONMimetype(mimetype) {
			return []byte(v), nil
		}
	}
	return Dumps(data)
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

func sameHandle(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
