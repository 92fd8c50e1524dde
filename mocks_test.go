package aegisx_test

import (
	"context"
	"sync"
	"testing"
	"time"

	aegisx "github.com/aegisx/go-client"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockActivitySink implements aegisx.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event aegisx.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockStateStore implements aegisx.StateStore
type MockStateStore struct {
	mock.Mock
}

func (m *MockStateStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStateStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStateStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockTokenRefresher implements aegisx.TokenRefresher
type MockTokenRefresher struct {
	mock.Mock
}

func (m *MockTokenRefresher) RefreshToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// recordingNavigator captures routes handed to Navigate.
type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.routes))
	copy(out, n.routes)
	return out
}

// recordingSink collects activity events without testify ceremony.
type recordingSink struct {
	mu     sync.Mutex
	events []aegisx.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event aegisx.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []aegisx.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]aegisx.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) Types() []aegisx.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]aegisx.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// recordingNotifier captures user notices.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, level+": "+message)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}

// mintToken produces a signed JWT carrying the given claims. The
// signature key is irrelevant: client-side handling never verifies it.
func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func mintUserToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	return mintToken(t, jwt.MapClaims{
		"sub":       "user-123",
		"uid":       "user-123",
		"email":     "user@example.com",
		"firstName": "Test",
		"lastName":  "User",
		"role":      "admin",
		"exp":       expiresAt.Unix(),
	})
}
