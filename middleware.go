package bscript

// Middleware for cross-cutting concerns with buffered responses. Script routes get the same middleware as leaf
// handlers, and an internal redirect runs it again for the new target.
type Middleware func(BareHandler) BareHandler

// Wrap takes the inner handler h and wraps it with middleware. The order is that of the Gorilla and Chi router. That
// is: the middleware provided first is called first and is the "outer" most wrapping, the middleware provided last
// will be the "inner most" wrapping (closest to the handler).
func Wrap(h Handler, m ...Middleware) BareHandler {
	return wrapBare(ToBare(h), m...)
}

// wrapBare is [Wrap] for handlers that are bare already, like the ones running scripts.
func wrapBare(h BareHandler, m ...Middleware) BareHandler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}

	return h
}
