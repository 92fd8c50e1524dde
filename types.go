package aegisx

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface every component accepts. The
// default implementation writes to stdout; swap it for your app logger
// through the With*Logger options.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Navigator performs route changes in the host application shell.
// The SDK never renders anything itself; it only asks the shell to
// move (default landing route after login, login route after an
// irrecoverable refresh failure).
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(route string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(route string) {
	if f != nil {
		f(route)
	}
}

// SessionReader is the read-only view of the session handed to every
// component except the owning Client. The Client is the single writer.
type SessionReader interface {
	AccessToken() string
	CurrentUser() *User
	IsAuthenticated() bool
}

// TokenRefresher exchanges the refresh credential for a new access
// token. It is the only Client operation the transport is allowed to
// invoke on its own initiative.
type TokenRefresher interface {
	RefreshToken(ctx context.Context) (string, error)
}

// Config exposes the runtime configuration to components through
// getters so callers can supply their own source.
type Config interface {
	GetAPIBaseURL() string
	GetLoginRoute() string
	GetDefaultRoute() string
	GetAuthExcludePaths() []string
	GetCorrelationHeader() string
	GetTimestampHeader() string
	GetErrorLogPath() string
	GetFeatureFlag(name string) bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AEGISX "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AEGISX "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AEGISX "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AEGISX "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
