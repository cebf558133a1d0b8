// Package httpmiddleware provides server-wide HTTP middleware that sits in
// front of the router: CORS and rate limiting. Per-route concerns such as
// authentication live with the routes themselves.
package httpmiddleware

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Wrap applies the middlewares to h. The first middleware becomes the
// outermost layer, so it sees the request first and the response last.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
