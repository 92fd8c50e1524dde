package aegisx

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var _ http.RoundTripper = (*Transport)(nil)

// refreshKey is the singleflight key: there is only ever one refresh
// exchange worth running at a time.
const refreshKey = "token.refresh"

// Transport is an http.RoundTripper that decorates outgoing API
// requests the way the application shell expects: it resolves relative
// URLs against the configured API base, stamps correlation and
// timestamp headers, attaches the bearer token, and transparently
// retries a request exactly once after refreshing an expired token.
//
// Requests whose path matches one of the configured auth prefixes are
// passed through without a bearer token and are never retried; those
// endpoints authenticate by credential or cookie, and retrying them
// through the refresher would recurse.
type Transport struct {
	base        http.RoundTripper
	cfg         Config
	session     SessionReader
	refresher   TokenRefresher
	navigator   Navigator
	logger      Logger
	group       singleflight.Group
	independent bool
	now         func() time.Time
}

// TransportOption customizes Transport construction.
type TransportOption func(*Transport)

// WithTransportBase sets the underlying RoundTripper (default
// http.DefaultTransport).
func WithTransportBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		if base != nil {
			t.base = base
		}
	}
}

// WithTransportNavigator wires the router used when a refresh attempt
// fails and the user must be sent back to the login route.
func WithTransportNavigator(nav Navigator) TransportOption {
	return func(t *Transport) {
		if nav != nil {
			t.navigator = nav
		}
	}
}

// WithTransportLogger overrides the default logger.
func WithTransportLogger(logger Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithIndependentRefresh disables refresh deduplication: each 401 runs
// its own refresh exchange instead of sharing one in-flight call.
func WithIndependentRefresh() TransportOption {
	return func(t *Transport) {
		t.independent = true
	}
}

// WithTransportClock injects a custom clock.
func WithTransportClock(clock func() time.Time) TransportOption {
	return func(t *Transport) {
		if clock != nil {
			t.now = clock
		}
	}
}

// NewTransport returns a Transport reading tokens from session and
// delegating expired-token recovery to refresher (normally the
// *Client).
func NewTransport(cfg Config, session SessionReader, refresher TokenRefresher, opts ...TransportOption) *Transport {
	t := &Transport{
		base:      http.DefaultTransport,
		cfg:       cfg,
		session:   session,
		refresher: refresher,
		navigator: NavigatorFunc(nil),
		logger:    defLogger{},
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

// RoundTrip implements http.RoundTripper. The incoming request is
// never mutated; decoration happens on a clone.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	correlationID := t.correlationID(req)

	attempt, err := t.decorate(req, t.session.AccessToken(), correlationID)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(attempt)
	if err != nil {
		return nil, errWithMetadata(ErrNetwork, map[string]any{
			"url":   attempt.URL.String(),
			"cause": err.Error(),
		})
	}

	if resp.StatusCode != http.StatusUnauthorized || t.excluded(attempt.URL.Path) {
		return resp, nil
	}

	// A request with a one-shot body can not be replayed.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	token, refreshErr := t.refresh(req.Context())
	if refreshErr != nil {
		t.logger.Warn("token refresh failed, redirecting to login: %v", refreshErr)
		t.navigator.Navigate(t.cfg.GetLoginRoute())
		return nil, &RefreshFailedError{Cause: refreshErr}
	}

	retry, err := t.decorate(req, token, correlationID)
	if err != nil {
		return nil, err
	}

	// Exactly one retry: a second 401 propagates to the caller.
	resp, err = t.base.RoundTrip(retry)
	if err != nil {
		return nil, errWithMetadata(ErrNetwork, map[string]any{
			"url":   retry.URL.String(),
			"cause": err.Error(),
		})
	}

	return resp, nil
}

// refresh runs the token refresh exchange. By default concurrent
// callers share a single in-flight exchange; each waiter still honors
// its own context cancellation.
func (t *Transport) refresh(ctx context.Context) (string, error) {
	if t.independent {
		return t.refresher.RefreshToken(ctx)
	}

	ch := t.group.DoChan(refreshKey, func() (any, error) {
		// The shared exchange must not die with the first waiter.
		return t.refresher.RefreshToken(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "refresh wait canceled")
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	}
}

// correlationID resolves the id once per logical request, so a retried
// attempt reaches the server with the same id as its original.
func (t *Transport) correlationID(req *http.Request) string {
	if id := req.Header.Get(t.cfg.GetCorrelationHeader()); id != "" {
		return id
	}
	if id, ok := CorrelationIDFromContext(req.Context()); ok {
		return id
	}
	return uuid.NewString()
}

// decorate clones req, resolves its URL against the API base and
// applies the standard request headers. The bearer token is attached
// only on non-excluded paths and never overrides an explicit
// Authorization header.
func (t *Transport) decorate(req *http.Request, token, correlationID string) (*http.Request, error) {
	out := req.Clone(req.Context())

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to replay request body")
		}
		out.Body = body
	}

	resolved, err := t.absoluteURL(out.URL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to resolve request URL").
			WithMetadata(map[string]any{"url": out.URL.String()})
	}
	out.URL = resolved
	out.Host = ""

	if out.Header.Get(t.cfg.GetCorrelationHeader()) == "" {
		out.Header.Set(t.cfg.GetCorrelationHeader(), correlationID)
	}
	out.Header.Set(t.cfg.GetTimestampHeader(), t.now().UTC().Format(time.RFC3339))

	if token != "" && !t.excluded(out.URL.Path) && out.Header.Get("Authorization") == "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	return out, nil
}

// absoluteURL resolves a relative request URL by prefixing the
// configured API base, matching the string concatenation the rest of
// the platform performs. Absolute URLs pass through untouched.
func (t *Transport) absoluteURL(u *url.URL) (*url.URL, error) {
	if u.IsAbs() {
		return u, nil
	}
	return url.Parse(t.cfg.GetAPIBaseURL() + u.String())
}

func (t *Transport) excluded(path string) bool {
	for _, prefix := range t.cfg.GetAuthExcludePaths() {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
