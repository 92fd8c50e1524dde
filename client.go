package aegisx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

var _ TokenRefresher = (*Client)(nil)

// Client owns the Session: it talks to the remote authentication API,
// persists the access token across restarts, and is the only component
// allowed to write session state. Everything else reads through
// Session().
type Client struct {
	httpClient   *http.Client
	cfg          Config
	session      *SessionStore
	state        StateStore
	navigator    Navigator
	logger       Logger
	activitySink ActivitySink
	lifecycle    SessionLifecycle
	now          func() time.Time
}

// ClientOption customizes Client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for the auth
// endpoints. The default carries a cookie jar so the http-only refresh
// cookie survives between calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithStateStore overrides the durable client-state store (default
// in-memory).
func WithStateStore(store StateStore) ClientOption {
	return func(c *Client) {
		if store != nil {
			c.state = store
		}
	}
}

// WithNavigator wires the application shell's router.
func WithNavigator(nav Navigator) ClientOption {
	return func(c *Client) {
		if nav != nil {
			c.navigator = nav
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) ClientOption {
	return func(c *Client) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithSessionLifecycle overrides the lifecycle state machine.
func WithSessionLifecycle(lifecycle SessionLifecycle) ClientOption {
	return func(c *Client) {
		if lifecycle != nil {
			c.lifecycle = lifecycle
		}
	}
}

// NewClient returns a Client bound to cfg.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	jar, _ := cookiejar.New(nil)

	c := &Client{
		httpClient:   &http.Client{Jar: jar},
		cfg:          cfg,
		session:      NewSessionStore(),
		state:        NewMemoryStateStore(),
		navigator:    NavigatorFunc(nil),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.lifecycle == nil {
		c.lifecycle = NewSessionLifecycle(
			WithLifecycleActivitySink(c.activitySink),
			WithLifecycleLogger(c.logger),
			WithLifecycleClock(c.now),
		)
	}

	return c
}

// Session returns the read-only view of the session.
func (c *Client) Session() SessionReader {
	return c.session
}

// Lifecycle exposes the session state machine for inspection.
func (c *Client) Lifecycle() SessionLifecycle {
	return c.lifecycle
}

// Login exchanges credentials for a session. On success the token is
// persisted, the session becomes authenticated and the shell is
// navigated to the default route. Failures map to the user-facing
// taxonomy (invalid credentials, user exists, network, generic) and
// are returned to the caller to surface; no automatic retry.
func (c *Client) Login(ctx context.Context, payload LoginPayload) (*User, error) {
	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid login payload")
	}

	user, err := c.authenticate(ctx, "/api/auth/login", "login", payload)
	if err != nil {
		c.emitAuthEvent(ctx, ActivityEventLoginFailure, nil, map[string]any{
			"identifier": payload.Email,
			"error":      err.Error(),
		})
		return nil, err
	}

	if payload.RememberMe {
		if err := c.state.Set(ctx, StateKeyRememberedEmail, payload.Email); err != nil {
			c.logger.Warn("unable to persist remembered email: %v", err)
		}
	} else {
		if err := c.state.Delete(ctx, StateKeyRememberedEmail); err != nil {
			c.logger.Warn("unable to clear remembered email: %v", err)
		}
	}

	c.emitAuthEvent(ctx, ActivityEventLoginSuccess, user, map[string]any{
		"identifier": payload.Email,
	})
	c.navigator.Navigate(c.cfg.GetDefaultRoute())

	return user, nil
}

// Register creates an account. Same contract as Login against the
// register endpoint; a 409 maps to ErrUserExists.
func (c *Client) Register(ctx context.Context, payload RegisterPayload) (*User, error) {
	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid register payload")
	}

	user, err := c.authenticate(ctx, "/api/auth/register", "register", payload)
	if err != nil {
		c.emitAuthEvent(ctx, ActivityEventRegisterFailure, nil, map[string]any{
			"identifier": payload.Email,
			"error":      err.Error(),
		})
		return nil, err
	}

	c.emitAuthEvent(ctx, ActivityEventRegisterSuccess, user, map[string]any{
		"identifier": payload.Email,
	})
	c.navigator.Navigate(c.cfg.GetDefaultRoute())

	return user, nil
}

// Logout posts a best-effort logout request and then, regardless of
// its outcome, clears the session, removes the persisted token and
// navigates to the login route. Logout never leaves stale credentials
// behind; the returned error only reports a failed transport attempt.
func (c *Client) Logout(ctx context.Context) error {
	user := c.session.CurrentUser()

	defer func() {
		if err := c.state.Delete(ctx, StateKeyAccessToken); err != nil {
			c.logger.Warn("unable to remove persisted token: %v", err)
		}
		c.session.clear()
		c.toAnonymous(ctx, user, "logout")
		c.emitAuthEvent(ctx, ActivityEventLogout, user, nil)
		c.navigator.Navigate(c.cfg.GetLoginRoute())
	}()

	// Bounded so a dead backend can not stall shutdown.
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, _, err := c.postAuth(reqCtx, "/api/auth/logout", nil); err != nil {
		c.logger.Warn("logout request failed: %v", err)
		return err
	}

	return nil
}

// RefreshToken exchanges the refresh cookie for a new access token.
// Success rotates only the token (the user projection is untouched)
// and re-persists it; failure clears the entire session. This is the
// only operation other components (the transport) invoke on their own
// initiative.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	env, status, err := c.postAuth(ctx, "/api/auth/refresh", nil)
	if err != nil {
		return "", c.failRefresh(ctx, err)
	}

	if status != http.StatusOK || env == nil || !env.Success {
		return "", c.failRefresh(ctx, errWithMetadata(ErrRefreshFailed, map[string]any{
			"status": status,
		}))
	}

	data := authPayload{}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AccessToken == "" {
		return "", c.failRefresh(ctx, errWithMetadata(ErrRefreshFailed, map[string]any{
			"reason": "refresh response missing access token",
		}))
	}

	c.session.rotateToken(data.AccessToken)
	if err := c.state.Set(ctx, StateKeyAccessToken, data.AccessToken); err != nil {
		c.logger.Warn("unable to persist rotated token: %v", err)
	}

	if c.lifecycle.Current() == SessionStateAuthenticated {
		if _, err := c.lifecycle.Transition(ctx, c.actorFromUser(c.session.CurrentUser()), SessionStateAuthenticated,
			WithTransitionReason("token.rotated"),
		); err != nil {
			c.logger.Warn("lifecycle rotation transition failed: %v", err)
		}
	}

	c.emitAuthEvent(ctx, ActivityEventTokenRefreshed, c.session.CurrentUser(), nil)

	return data.AccessToken, nil
}

// VerifyEmail confirms an address through its verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	env, status, err := c.postAuth(ctx, "/api/auth/verify-email", map[string]string{
		"token": token,
	})
	if err != nil {
		return err
	}

	if status != http.StatusOK || env == nil || !env.Success {
		return authErrorFromStatus("verify-email", status)
	}

	return nil
}

// ResendVerification re-sends the verification email for a user id.
func (c *Client) ResendVerification(ctx context.Context, userID string) error {
	env, status, err := c.postAuth(ctx, "/api/auth/resend-verification", map[string]string{
		"userId": userID,
	})
	if err != nil {
		return err
	}

	if status != http.StatusOK || env == nil || !env.Success {
		return authErrorFromStatus("resend-verification", status)
	}

	return nil
}

// RestoreSession rebuilds the session from the persisted token at
// startup. The user projection is decoded from the token's payload
// segment (the signature is never verified client-side); if decoding
// yields nothing usable the fixed development identity is substituted.
// A token with a passed expiry claim is discarded and the session
// stays anonymous.
func (c *Client) RestoreSession(ctx context.Context) (*User, error) {
	token, err := c.state.Get(ctx, StateKeyAccessToken)
	if err != nil || token == "" {
		return nil, ErrNoStoredSession
	}

	claims, decodeErr := DecodeToken(token)
	if decodeErr == nil && claims.Expired(c.now()) {
		if err := c.state.Delete(ctx, StateKeyAccessToken); err != nil {
			c.logger.Warn("unable to remove expired token: %v", err)
		}
		c.emitAuthEvent(ctx, ActivityEventSessionExpired, nil, nil)
		return nil, ErrTokenExpired
	}

	var user *User
	if decodeErr != nil {
		c.logger.Warn("stored token payload not decodable, substituting development identity: %v", decodeErr)
		user = DevelopmentUser()
	} else if user = claims.User(); user == nil {
		c.logger.Warn("stored token carries no user projection, substituting development identity")
		user = DevelopmentUser()
	}

	c.session.set(token, user)
	if _, err := c.lifecycle.Transition(ctx, c.actorFromUser(user), SessionStateAuthenticated,
		WithTransitionReason("session.restored"),
	); err != nil {
		c.logger.Warn("lifecycle restore transition failed: %v", err)
	}

	c.emitAuthEvent(ctx, ActivityEventSessionRestored, user, nil)

	return user, nil
}

// IsTokenExpired compares the current token's decoded expiry claim
// against now; any decode failure counts as expired (fail-closed).
func (c *Client) IsTokenExpired() bool {
	token := c.session.AccessToken()
	if token == "" {
		return true
	}
	return IsTokenExpired(token, c.now())
}

// RememberedEmail returns the persisted remember-me email, if any.
func (c *Client) RememberedEmail(ctx context.Context) (string, bool) {
	email, err := c.state.Get(ctx, StateKeyRememberedEmail)
	if err != nil || email == "" {
		return "", false
	}
	return email, true
}

// Theme returns the persisted theme preference, defaulting to light.
func (c *Client) Theme(ctx context.Context) string {
	theme, err := c.state.Get(ctx, StateKeyTheme)
	if err != nil || (theme != ThemeLight && theme != ThemeDark) {
		return ThemeLight
	}
	return theme
}

// SetTheme persists the theme preference.
func (c *Client) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return goerrors.New("unknown theme", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"theme": theme})
	}
	return c.state.Set(ctx, StateKeyTheme, theme)
}

// authenticate runs the shared login/register exchange and installs
// the resulting session.
func (c *Client) authenticate(ctx context.Context, path, op string, payload any) (*User, error) {
	env, status, err := c.postAuth(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK || env == nil || !env.Success {
		return nil, authErrorFromStatus(op, status)
	}

	data := authPayload{}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed authentication response")
	}

	if data.AccessToken == "" || data.User == nil {
		return nil, goerrors.New("authentication response missing token or user", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"operation": op})
	}

	if err := c.state.Set(ctx, StateKeyAccessToken, data.AccessToken); err != nil {
		c.logger.Warn("unable to persist access token: %v", err)
	}

	c.session.set(data.AccessToken, data.User)

	if _, err := c.lifecycle.Transition(ctx, c.actorFromUser(data.User), SessionStateAuthenticated,
		WithTransitionReason(op),
	); err != nil {
		c.logger.Warn("lifecycle %s transition failed: %v", op, err)
	}

	return c.session.CurrentUser(), nil
}

// failRefresh clears the session after a failed refresh exchange.
func (c *Client) failRefresh(ctx context.Context, cause error) error {
	user := c.session.CurrentUser()

	c.session.clear()
	if err := c.state.Delete(ctx, StateKeyAccessToken); err != nil {
		c.logger.Warn("unable to remove persisted token: %v", err)
	}
	c.toAnonymous(ctx, user, "refresh.failed")

	c.emitAuthEvent(ctx, ActivityEventRefreshFailure, user, map[string]any{
		"error": cause.Error(),
	})

	var richErr *goerrors.Error
	if goerrors.As(cause, &richErr) {
		return richErr
	}
	return goerrors.Wrap(cause, ErrRefreshFailed.Category, ErrRefreshFailed.Message).
		WithTextCode(ErrRefreshFailed.TextCode)
}

func (c *Client) toAnonymous(ctx context.Context, user *User, reason string) {
	if c.lifecycle.Current() != SessionStateAuthenticated {
		return
	}
	if _, err := c.lifecycle.Transition(ctx, c.actorFromUser(user), SessionStateAnonymous,
		WithTransitionReason(reason),
	); err != nil {
		c.logger.Warn("lifecycle transition to anonymous failed: %v", err)
	}
}

// postAuth issues a request against the auth endpoints with the plain
// HTTP client (never the intercepting transport, to avoid recursive
// refresh loops). A transport-level failure maps to ErrNetwork; any
// HTTP status is returned to the caller to interpret.
func (c *Client) postAuth(ctx context.Context, path string, body any) (*apiEnvelope, int, error) {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode request payload")
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GetAPIBaseURL()+path, payload)
	if err != nil {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	correlationID, ok := CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = uuid.NewString()
	}
	req.Header.Set(c.cfg.GetCorrelationHeader(), correlationID)
	req.Header.Set(c.cfg.GetTimestampHeader(), c.now().UTC().Format(time.RFC3339))

	if token := c.session.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errWithMetadata(ErrNetwork, map[string]any{
			"path":  path,
			"cause": err.Error(),
		})
	}
	defer resp.Body.Close()

	env := &apiEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
		// Non-JSON bodies are fine on error statuses; the status code
		// drives the mapping.
		env = nil
	}

	return env, resp.StatusCode, nil
}

func (c *Client) emitAuthEvent(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	sink := normalizeActivitySink(c.activitySink)

	event := ActivityEvent{
		EventType: eventType,
		Actor:     c.actorFromUser(user),
		Metadata:  metadata,
	}

	if user != nil {
		event.UserID = user.ID
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}

func (c *Client) actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{
		ID:   user.ID,
		Type: "user",
	}
}
