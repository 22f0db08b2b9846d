package handler

import (
	"context"
)

// HookEvent represents an event from the upload controller which can be
// handled by the application, e.g. by an injected pkg/hooks backend.
type HookEvent struct {
	// Context provides access to the context from the HTTP request. This context is
	// not the exact value as the request context from http.Request.Context() but
	// a similar context that retains the same values as the request context. In
	// addition, Context will be cancelled after a short delay when the request
	// context is done. This delay is controlled by Config.GracefulRequestCompletionTimeout.
	Context context.Context
	// Upload contains information about the upload that caused this hook
	// to be fired.
	Upload FileInfo
	// HTTPRequest contains details about the HTTP request that reached
	// the server.
	HTTPRequest HTTPRequest
}

func newHookEvent(c *httpContext, info FileInfo) HookEvent {
	// The Host header field is not present in the header map, see https://pkg.go.dev/net/http#Request:
	// > For incoming requests, the Host header is promoted to the
	// > Request.Host field and removed from the Header map.
	// That's why we add it back manually. The header is also cloned, so hook
	// backends consuming the event asynchronously do not race with later
	// modifications of the request's header map.
	header := c.req.Header.Clone()
	header.Set("Host", c.req.Host)

	return HookEvent{
		Context: c,
		Upload:  info,
		HTTPRequest: HTTPRequest{
			Method:     c.req.Method,
			URI:        c.req.RequestURI,
			RemoteAddr: c.req.RemoteAddr,
			Header:     header,
		},
	}
}
