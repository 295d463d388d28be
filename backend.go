package specbind

import "strings"

// Backend is an HTTP server framework the core can bind routes into.
//
// A backend owns routing and connection handling. For each Route it installs
// one native handler that translates the native request into a *Request,
// calls Endpoint.Serve and writes the returned *Reply into the native
// response in place.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Route registers one route. A Route with an empty Method matches any
	// method and always ends in a wildcard segment.
	Route(r Route) error
	// Fallback installs h for the backend's own error paths (unmatched
	// routes, unsupported methods, recovered panics).
	Fallback(h *ErrorHandler)
}

// Route is one entry of a mount's route table.
type Route struct {
	Method      string // empty matches any method
	Path        string // template: "/pets/{id}", optional trailing "{name...}"
	OperationID string
	Endpoint    *Endpoint
}

// Key returns the route's (method, path) identity.
func (r Route) Key() string {
	method := r.Method
	if method == "" {
		method = "*"
	}
	return method + " " + r.Path
}

// shape is the route's identity with parameter names dropped, so
// "/pets/{id}" and "/pets/{name}" collide.
func (r Route) shape() string {
	method := r.Method
	if method == "" {
		method = "*"
	}
	return method + " " + FormatTemplate(r.Path, func(s Segment) string {
		if s.Wildcard {
			return "{...}"
		}
		return "{}"
	})
}

// Wildcard reports whether the path ends in a "{name...}" segment.
func (r Route) Wildcard() bool {
	segs := ParseTemplate(r.Path)
	return len(segs) > 0 && segs[len(segs)-1].Wildcard
}

// Prefix returns the path before the trailing wildcard segment, or the full
// path for routes without one.
func (r Route) Prefix() string {
	if !r.Wildcard() {
		return r.Path
	}
	return r.Path[:strings.LastIndex(r.Path, "{")]
}

// Segment is one "/"-separated piece of a path template.
type Segment struct {
	Literal  string // set for literal segments
	Param    string // set for "{name}" and "{name...}" segments
	Wildcard bool   // "{name...}": matches the rest of the path
}

// ParseTemplate splits a path template into segments. Parameters must span a
// whole segment; anything else is kept as a literal.
func ParseTemplate(path string) []Segment {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		if len(p) > 2 && p[0] == '{' && p[len(p)-1] == '}' {
			name := p[1 : len(p)-1]
			if base, ok := strings.CutSuffix(name, "..."); ok {
				segs = append(segs, Segment{Param: base, Wildcard: true})
				continue
			}
			segs = append(segs, Segment{Param: name})
			continue
		}
		segs = append(segs, Segment{Literal: p})
	}
	return segs
}

// FormatTemplate rebuilds a path from a template, rendering each parameter
// segment with param. Backends use it to translate into their own syntax.
func FormatTemplate(path string, param func(s Segment) string) string {
	segs := ParseTemplate(path)
	if len(segs) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		if s.Param == "" {
			b.WriteString(s.Literal)
			continue
		}
		b.WriteString(param(s))
	}
	if strings.HasSuffix(path, "/") && len(path) > 1 && !segs[len(segs)-1].Wildcard {
		b.WriteByte('/')
	}
	return b.String()
}

// ParamNames returns the parameter names of a path template in order.
func ParamNames(path string) []string {
	var names []string
	for _, s := range ParseTemplate(path) {
		if s.Param != "" {
			names = append(names, s.Param)
		}
	}
	return names
}

// JoinPath joins a base path and a route path with exactly one slash between
// them.
func JoinPath(base, path string) string {
	base = strings.TrimRight(base, "/")
	if path == "" || path == "/" {
		if base == "" {
			return "/"
		}
		return base + "/"
	}
	return base + "/" + strings.TrimLeft(path, "/")
}
