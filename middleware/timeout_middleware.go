package middleware

import (
	"context"
	"net/http"
	"obj-rpc/message"
	"time"
)

// TimeOutMiddleware answers 504 when the call takes longer than timeout. The
// operation keeps running in the background until it returns; it is handed a
// context that is cancelled at the deadline and may stop early by watching it.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return message.Failed(http.StatusGatewayTimeout, "request timed out")
			}
		}
	}
}
