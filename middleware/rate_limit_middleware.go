package middleware

import (
	"context"
	"net/http"
	"obj-rpc/message"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware rejects calls beyond a token bucket of r calls per
// second with the given burst, answering 429.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			if !limiter.Allow() {
				return message.Failed(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
