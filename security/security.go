// Package security evaluates operation security requirements against a
// request: API keys, HTTP basic credentials and HS256 bearer tokens.
package security

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bjaus/specbind"
)

// Context keys written on success.
const (
	TokenInfoKey = "token_info"
	UserKey      = "user"
)

var (
	errNoCredentials      = errors.New("no credentials provided")
	errInvalidCredentials = errors.New("provided credentials are not valid")
	errInsufficientScope  = errors.New("provided token does not have the required scope")
)

// BasicFunc checks a username and password. It returns the user identity to
// store under UserKey, or false to reject.
type BasicFunc func(ctx context.Context, username, password string) (string, bool)

// Evaluator implements specbind.SecurityEvaluator. A request passes when
// every scheme of at least one requirement passes.
type Evaluator struct {
	apiKeys   map[string]struct{}
	basic     BasicFunc
	jwtSecret []byte
	leeway    time.Duration
	timeFunc  func() time.Time
	logger    *slog.Logger
}

var _ specbind.SecurityEvaluator = (*Evaluator)(nil)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithAPIKeys sets the accepted API keys.
func WithAPIKeys(keys ...string) Option {
	return func(e *Evaluator) {
		for _, k := range keys {
			if k != "" {
				e.apiKeys[k] = struct{}{}
			}
		}
	}
}

// WithBasicAuth sets the HTTP basic credential check.
func WithBasicAuth(fn BasicFunc) Option {
	return func(e *Evaluator) {
		e.basic = fn
	}
}

// WithJWTSecret sets the HMAC key bearer tokens are verified with.
func WithJWTSecret(secret []byte) Option {
	return func(e *Evaluator) {
		e.jwtSecret = secret
	}
}

// WithLeeway allows for clock skew when validating token time claims.
func WithLeeway(d time.Duration) Option {
	return func(e *Evaluator) {
		e.leeway = d
	}
}

// WithTimeFunc sets the clock used for token validation.
func WithTimeFunc(fn func() time.Time) Option {
	return func(e *Evaluator) {
		e.timeFunc = fn
	}
}

// WithLogger sets the logger for rejected credentials.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		apiKeys:  make(map[string]struct{}),
		leeway:   time.Minute,
		timeFunc: time.Now,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate implements specbind.SecurityEvaluator. Missing credentials yield
// a 401 problem, rejected credentials a 403 problem.
func (e *Evaluator) Evaluate(ctx context.Context, req *specbind.Request, reqs []specbind.SecurityRequirement, defs map[string]specbind.SecurityScheme) error {
	if len(reqs) == 0 {
		return nil
	}

	var last error
	for _, r := range reqs {
		err := e.satisfy(ctx, req, r, defs)
		if err == nil {
			return nil
		}
		// A rejected credential is reported over a missing one.
		if last == nil || !errors.Is(err, errNoCredentials) {
			last = err
		}
	}

	e.logger.DebugContext(ctx, "security check failed", "path", req.URL, "err", last)
	if errors.Is(last, errNoCredentials) {
		return problem(http.StatusUnauthorized, last)
	}
	return problem(http.StatusForbidden, last)
}

// satisfy checks every scheme of one requirement. An empty requirement
// allows anonymous access.
func (e *Evaluator) satisfy(ctx context.Context, req *specbind.Request, r specbind.SecurityRequirement, defs map[string]specbind.SecurityScheme) error {
	// Values are only written once the whole requirement passes.
	pending := map[string]any{}
	for name, scopes := range r {
		scheme, ok := defs[name]
		if !ok {
			return fmt.Errorf("%w: unknown security scheme %q", errInvalidCredentials, name)
		}
		if err := e.check(ctx, req, scheme, scopes, pending); err != nil {
			return err
		}
	}
	for k, v := range pending {
		req.Context.Set(k, v)
	}
	return nil
}

func (e *Evaluator) check(ctx context.Context, req *specbind.Request, s specbind.SecurityScheme, scopes []string, out map[string]any) error {
	switch {
	case s.Type == "apiKey":
		return e.checkAPIKey(req, s, out)
	case s.Type == "basic" || (s.Type == "http" && s.Scheme == "basic"):
		return e.checkBasic(ctx, req, out)
	case s.Type == "oauth2" || (s.Type == "http" && s.Scheme == "bearer"):
		return e.checkBearer(req, scopes, out)
	default:
		return fmt.Errorf("%w: unsupported security scheme type %q", errInvalidCredentials, s.Type)
	}
}

func (e *Evaluator) checkAPIKey(req *specbind.Request, s specbind.SecurityScheme, out map[string]any) error {
	var key string
	switch s.In {
	case "header":
		key = req.Headers.Get(s.Name)
	case "query":
		key = req.Query.Get(s.Name)
	case "cookie":
		key = cookie(req.Headers, s.Name)
	}
	if key == "" {
		return errNoCredentials
	}
	if _, ok := e.apiKeys[key]; !ok {
		return errInvalidCredentials
	}
	out[UserKey] = "apikey"
	return nil
}

func (e *Evaluator) checkBasic(ctx context.Context, req *specbind.Request, out map[string]any) error {
	encoded, ok := strings.CutPrefix(req.Headers.Get("Authorization"), "Basic ")
	if !ok {
		return errNoCredentials
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return errInvalidCredentials
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok || e.basic == nil {
		return errInvalidCredentials
	}
	user, ok := e.basic(ctx, username, password)
	if !ok {
		return errInvalidCredentials
	}
	out[UserKey] = user
	return nil
}

func (e *Evaluator) checkBearer(req *specbind.Request, scopes []string, out map[string]any) error {
	tokenString, ok := strings.CutPrefix(req.Headers.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return errNoCredentials
	}
	if len(e.jwtSecret) == 0 {
		return errInvalidCredentials
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(
		strings.TrimSpace(tokenString),
		claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return e.jwtSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(e.leeway),
		jwt.WithTimeFunc(e.timeFunc),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidCredentials, err)
	}

	granted := tokenScopes(claims)
	for _, scope := range scopes {
		if !slices.Contains(granted, scope) {
			return fmt.Errorf("%w: missing %q", errInsufficientScope, scope)
		}
	}

	out[TokenInfoKey] = map[string]any(claims)
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		out[UserKey] = sub
	}
	return nil
}

// tokenScopes reads a space separated "scope" claim or a "scopes" list.
func tokenScopes(claims jwt.MapClaims) []string {
	if s, ok := claims["scope"].(string); ok {
		return strings.Fields(s)
	}
	list, _ := claims["scopes"].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func cookie(h http.Header, name string) string {
	r := http.Request{Header: h}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func problem(status int, err error) error {
	base := specbind.HTTPStatusError(status)
	detail := err.Error()
	if errors.Is(err, errNoCredentials) {
		detail = errNoCredentials.Error()
	}
	return &specbind.ProblemError{
		Status: status,
		Title:  base.Name,
		Detail: detail,
	}
}
