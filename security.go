package specbind

import "context"

// SecurityRequirement maps scheme names to required scopes. All schemes in
// one requirement must pass.
type SecurityRequirement map[string][]string

// SecurityScheme is a declared security definition.
type SecurityScheme struct {
	Type         string // apiKey, basic, http, oauth2, openIdConnect
	Scheme       string // http: basic or bearer
	Name         string // apiKey: header or query parameter name
	In           string // apiKey: header or query
	BearerFormat string
}

// SecurityEvaluator decides whether a request satisfies the security
// requirements of an operation. It returns nil when at least one requirement
// passes, else an error that is normalized into the response.
type SecurityEvaluator interface {
	Evaluate(ctx context.Context, req *Request, reqs []SecurityRequirement, defs map[string]SecurityScheme) error
}

// SecurityEvaluatorFunc adapts a function to SecurityEvaluator.
type SecurityEvaluatorFunc func(ctx context.Context, req *Request, reqs []SecurityRequirement, defs map[string]SecurityScheme) error

// Evaluate implements SecurityEvaluator.
func (f SecurityEvaluatorFunc) Evaluate(ctx context.Context, req *Request, reqs []SecurityRequirement, defs map[string]SecurityScheme) error {
	return f(ctx, req, reqs, defs)
}
