// Package spec loads Swagger 2.0 and OpenAPI 3.x documents into a
// specbind.Specification.
//
// Documents may be YAML or JSON. The document is not validated beyond what
// is needed to enumerate its operations.
package spec

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bjaus/specbind"
)

// Sentinel errors.
var (
	ErrUnsupportedVersion = errors.New("unsupported specification version")
	ErrMissingOperationID = errors.New("operation has no operationId")
	ErrMalformed          = errors.New("malformed specification")
)

// methods are the path item keys that declare operations, in the order
// they are considered.
var methods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Spec is a loaded document.
type Spec struct {
	version  int
	raw      *Object
	title    string
	basePath string
	ops      []specbind.Operation
	security []specbind.SecurityRequirement
	defs     map[string]specbind.SecurityScheme
}

var _ specbind.Specification = (*Spec)(nil)

// Load reads and parses the document at path.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read specification: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse parses a YAML or JSON document.
func Parse(data []byte) (*Spec, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	decoded, err := decodeNode(&root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	raw, ok := decoded.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w: document is not a mapping", ErrMalformed)
	}

	s := &Spec{raw: raw}
	if s.version, err = detectVersion(raw); err != nil {
		return nil, err
	}

	info := object(raw, "info")
	s.title = str(info, "title")

	if s.version == 2 {
		s.basePath = str(raw, "basePath")
		s.defs = schemes(object(raw, "securityDefinitions"))
	} else {
		s.basePath = serverPath(raw)
		s.defs = schemes(object(object(raw, "components"), "securitySchemes"))
	}

	s.security = requirements(raw)
	if s.ops, err = s.operations(); err != nil {
		return nil, err
	}
	return s, nil
}

// Version implements specbind.Specification.
func (s *Spec) Version() int { return s.version }

// BasePath implements specbind.Specification.
func (s *Spec) BasePath() string { return s.basePath }

// Title implements specbind.Specification.
func (s *Spec) Title() string { return s.title }

// Document implements specbind.Specification. It returns the decoded
// document with its original key order.
func (s *Spec) Document() any { return s.raw }

// Operations implements specbind.Specification.
func (s *Spec) Operations() []specbind.Operation {
	return append([]specbind.Operation(nil), s.ops...)
}

// Security implements specbind.Specification.
func (s *Spec) Security() []specbind.SecurityRequirement { return s.security }

// SecurityDefinitions implements specbind.Specification.
func (s *Spec) SecurityDefinitions() map[string]specbind.SecurityScheme { return s.defs }

func detectVersion(raw *Object) (int, error) {
	if v := versionField(raw, "swagger"); v != "" {
		if v == "2.0" || v == "2" {
			return 2, nil
		}
		return 0, fmt.Errorf("%w: swagger %q", ErrUnsupportedVersion, v)
	}
	if v := versionField(raw, "openapi"); v != "" {
		if strings.HasPrefix(v, "3.") {
			return 3, nil
		}
		return 0, fmt.Errorf("%w: openapi %q", ErrUnsupportedVersion, v)
	}
	return 0, fmt.Errorf("%w: no swagger or openapi field", ErrUnsupportedVersion)
}

// versionField reads a version that may have been written unquoted.
func versionField(raw *Object, key string) string {
	v, _ := raw.Get(key)
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func (s *Spec) operations() ([]specbind.Operation, error) {
	paths := object(s.raw, "paths")
	globalProduces := stringList(s.raw, "produces")

	var ops []specbind.Operation
	for _, path := range paths.Keys() {
		item := object(paths, path)
		for _, key := range item.Keys() {
			if !slices.Contains(methods, key) {
				continue
			}
			op := object(item, key)
			id := str(op, "operationId")
			if id == "" {
				return nil, fmt.Errorf("%w: %s %s", ErrMissingOperationID, strings.ToUpper(key), path)
			}

			var produces []string
			if s.version == 2 {
				produces = stringList(op, "produces")
				if produces == nil {
					produces = globalProduces
				}
			} else {
				produces = responseTypes(object(op, "responses"))
			}

			ops = append(ops, specbind.Operation{
				Method:      strings.ToUpper(key),
				Path:        path,
				OperationID: id,
				Produces:    produces,
				Security:    requirements(op),
			})
		}
	}
	return ops, nil
}

// responseTypes collects the content types of an OpenAPI 3 operation's
// responses, success responses first.
func responseTypes(responses *Object) []string {
	var success, other []string
	seen := map[string]bool{}
	for _, code := range responses.Keys() {
		content := object(object(responses, code), "content")
		for _, ct := range content.Keys() {
			if seen[ct] {
				continue
			}
			seen[ct] = true
			if strings.HasPrefix(code, "2") || code == "default" {
				success = append(success, ct)
			} else {
				other = append(other, ct)
			}
		}
	}
	return append(success, other...)
}

// requirements returns the security list of obj: nil when absent, empty
// when declared empty.
func requirements(obj *Object) []specbind.SecurityRequirement {
	v, ok := obj.Get("security")
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	reqs := make([]specbind.SecurityRequirement, 0, len(list))
	for _, item := range list {
		m, ok := item.(*Object)
		if !ok {
			continue
		}
		req := specbind.SecurityRequirement{}
		for _, name := range m.Keys() {
			req[name] = stringList(m, name)
			if req[name] == nil {
				req[name] = []string{}
			}
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func schemes(defs *Object) map[string]specbind.SecurityScheme {
	out := make(map[string]specbind.SecurityScheme, defs.Len())
	for _, name := range defs.Keys() {
		d := object(defs, name)
		out[name] = specbind.SecurityScheme{
			Type:         str(d, "type"),
			Scheme:       strings.ToLower(str(d, "scheme")),
			Name:         str(d, "name"),
			In:           str(d, "in"),
			BearerFormat: str(d, "bearerFormat"),
		}
	}
	return out
}

// serverPath returns the path of the first server URL, with server
// variables replaced by their defaults.
func serverPath(raw *Object) string {
	v, _ := raw.Get("servers")
	servers, _ := v.([]any)
	if len(servers) == 0 {
		return ""
	}
	server, _ := servers[0].(*Object)
	u := str(server, "url")

	vars := object(server, "variables")
	for _, name := range vars.Keys() {
		u = strings.ReplaceAll(u, "{"+name+"}", str(object(vars, name), "default"))
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.TrimRight(parsed.Path, "/")
}

func object(o *Object, key string) *Object {
	v, _ := o.Get(key)
	obj, _ := v.(*Object)
	return obj
}

func str(o *Object, key string) string {
	v, _ := o.Get(key)
	s, _ := v.(string)
	return s
}

func stringList(o *Object, key string) []string {
	v, ok := o.Get(key)
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
