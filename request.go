package specbind

import (
	"bytes"
	"context"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// maxMultipartMemory is the maximum memory used for multipart form parsing (32 MB).
const maxMultipartMemory = 32 << 20

// Request is the canonical, backend-independent view of one inbound call.
// A Request is created once per call by a backend and is owned by the
// request-handling flow for its duration.
type Request struct {
	URL        string
	Method     string
	Headers    http.Header
	Query      url.Values
	Body       []byte // nil when the request carried no body
	JSON       any    // decoded body for JSON content types, else nil
	Form       url.Values
	Files      map[string][]*multipart.FileHeader
	PathParams map[string]string
	RemoteAddr string
	Context    *Context

	ctx    context.Context //nolint:containedctx // request scoped, mirrors http.Request
	native any
}

// Parts is what a backend extracts from its native request before the
// canonical Request is assembled.
type Parts struct {
	URL            string
	Method         string
	Headers        http.Header
	Query          url.Values
	Body           []byte
	PathParams     map[string]string
	RemoteAddr     string
	Store          NativeStore
	NativeResponse any
}

// NewRequest assembles a canonical Request from backend parts. JSON bodies
// are decoded with Loads; url-encoded and multipart bodies populate Form and
// Files. Malformed form bodies leave Form and Files empty and Body intact.
func NewRequest(ctx context.Context, p Parts) *Request {
	if ctx == nil {
		ctx = context.Background()
	}

	req := &Request{
		URL:        p.URL,
		Method:     strings.ToUpper(p.Method),
		Headers:    p.Headers,
		Query:      p.Query,
		Form:       url.Values{},
		Files:      map[string][]*multipart.FileHeader{},
		PathParams: p.PathParams,
		RemoteAddr: p.RemoteAddr,
		Context:    NewContext(p.Store),
		ctx:        ctx,
		native:     p.NativeResponse,
	}
	if req.Headers == nil {
		req.Headers = http.Header{}
	}
	if req.Query == nil {
		req.Query = url.Values{}
	}
	if req.PathParams == nil {
		req.PathParams = map[string]string{}
	}
	if len(p.Body) > 0 {
		req.Body = p.Body
	}

	req.decodeBody()
	return req
}

// Ctx returns the Go context of the inbound call.
func (r *Request) Ctx() context.Context {
	return r.ctx
}

// NativeResponse returns the backend's native response handle, for use with
// Native when a handler writes the response itself.
func (r *Request) NativeResponse() any {
	return r.native
}

// ContentType returns the request's media type without parameters.
func (r *Request) ContentType() string {
	mediaType, _, err := mime.ParseMediaType(r.Headers.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mediaType
}

func (r *Request) decodeBody() {
	if r.Body == nil {
		return
	}

	mediaType, params, err := mime.ParseMediaType(r.Headers.Get("Content-Type"))
	if err != nil {
		return
	}

	switch {
	case IsJSONMimetype(mediaType):
		r.JSON = Loads(r.Body)
	case mediaType == "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(r.Body)); err == nil {
			r.Form = values
		}
	case mediaType == "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			return
		}
		form, err := multipart.NewReader(bytes.NewReader(r.Body), boundary).ReadForm(maxMultipartMemory)
		if err != nil {
			return
		}
		r.Form = url.Values(form.Value)
		r.Files = form.File
	}
}
