// Package middleware wraps the call to a bound operation.
//
// A Middleware sees every decoded Request before the operation runs and every
// Response after it returns, in onion order:
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
package middleware

import (
	"context"
	"obj-rpc/message"
)

type HandlerFunc func(ctx context.Context, req *message.Request) *message.Response

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one; the first one runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
