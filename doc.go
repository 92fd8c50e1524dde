// Package aegisx implements the client side of the AegisX admin
// platform protocol: session and token management, an authenticated
// HTTP transport, navigation loading with a compiled-in fallback, and
// durable client state.
//
// Session lifecycle:
//   - The SessionStore is owned by a single writer (the Client) and read
//     by everything else through SessionReader accessors. A session is
//     authenticated exactly when both the access token and the user
//     projection are present; the store's setters make any other
//     combination unrepresentable.
//   - SessionLifecycle centralizes the transition graph (anonymous to
//     authenticated and back, with authenticated re-entering itself on
//     token rotation), hooks, and activity emission.
//
// Transport:
//   - Transport is an http.RoundTripper that prefixes relative URLs with
//     the configured API base, attaches the bearer token plus correlation
//     headers, and recovers from a single expired-token failure per
//     request: one refresh, one retry, then a typed RefreshFailedError.
//     Requests to the auth endpoints themselves are passed through
//     untouched to avoid recursive refresh loops.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Client,
//     the lifecycle, and the navigation service. Sinks run best-effort
//     (errors are logged) so you can forward to a store or queue without
//     blocking authentication.
package aegisx
