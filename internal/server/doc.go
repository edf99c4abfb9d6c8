// Package server provides the local HTTP surface of rsc: the OAuth callback used by `auth login`
// and the optional Prometheus metrics endpoint served during a run.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback. It validates the state parameter,
// exchanges the code through an [Exchanger], and sends exactly one [OAuthResult] on its channel.
// Later callbacks are rejected.
//
// # Serving
//
// [Serve] runs a router on an address until its context is cancelled, then shuts the listener down.
package server
