// Package apitest provides typed test helpers for driving a bound backend
// over real HTTP.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// Client sends requests to a running test server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient starts an httptest.Server for h.
func NewClient(t testing.TB, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &Client{BaseURL: srv.URL, HTTP: srv.Client()}
}

// NewFastClient serves h on an in-memory listener.
func NewFastClient(t testing.TB, h fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() {
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	})

	transport := &http.Transport{
		DialContext: func(context.Context, string, string) (net.Conn, error) {
			return ln.Dial()
		},
	}
	return &Client{
		BaseURL: "http://specbind.test",
		HTTP:    &http.Client{Transport: transport},
	}
}

// Response holds a decoded API response. Bytes is the raw body.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Body    *T
	Bytes   []byte
}

// Get sends a typed GET request.
func Get[Resp any](t testing.TB, c *Client, path string, headers ...http.Header) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodGet, path, nil, headers)
}

// Post sends a typed POST request with a JSON body.
func Post[Req, Resp any](t testing.TB, c *Client, path string, body *Req, headers ...http.Header) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPost, path, body, headers)
}

// Put sends a typed PUT request with a JSON body.
func Put[Req, Resp any](t testing.TB, c *Client, path string, body *Req, headers ...http.Header) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPut, path, body, headers)
}

// Delete sends a typed DELETE request.
func Delete[Resp any](t testing.TB, c *Client, path string, headers ...http.Header) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodDelete, path, nil, headers)
}

// Raw sends a request with an untyped body and returns the undecoded
// response.
func Raw(t testing.TB, c *Client, method, path string, body []byte, headers ...http.Header) *Response[json.RawMessage] {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	return send[json.RawMessage](t, c, method, path, r, headers, false)
}

func do[Resp any](t testing.TB, c *Client, method, path string, body any, headers []http.Header) *Response[Resp] {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("apitest: marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(b)
		headers = append([]http.Header{{"Content-Type": {"application/json"}}}, headers...)
	}
	return send[Resp](t, c, method, path, reqBody, headers, true)
}

func send[Resp any](t testing.TB, c *Client, method, path string, body io.Reader, headers []http.Header, decode bool) *Response[Resp] {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, c.BaseURL+path, body)
	if err != nil {
		t.Fatalf("apitest: create request: %v", err)
	}
	for _, h := range headers {
		for k, vs := range h {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	// Redirects are part of what is under test.
	client := *c.HTTP
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("apitest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("apitest: close body: %v", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("apitest: read body: %v", err)
	}

	result := &Response[Resp]{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Bytes:   raw,
	}

	if decode && len(raw) > 0 {
		var decoded Resp
		if err := json.Unmarshal(raw, &decoded); err == nil {
			result.Body = &decoded
		}
	}

	return result
}
