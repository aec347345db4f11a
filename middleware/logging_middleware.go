package middleware

import (
	"context"
	"obj-rpc/message"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware logs each call with its duration, and the error text of
// failed calls.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)
			if resp == nil {
				resp = message.NoResponse()
			}
			fields := []zap.Field{
				zap.String("object", req.Object),
				zap.String("operation", req.Operation),
				zap.Int("args", len(req.Call.Args)),
				zap.Int("kwargs", len(req.Call.Kwargs)),
				zap.Duration("duration", time.Since(start)),
			}
			if resp.Error != "" {
				logger.Warn("call failed", append(fields, zap.Int("status", resp.HTTPStatus()), zap.String("error", resp.Error))...)
				return resp
			}
			logger.Info("call", fields...)
			return resp
		}
	}
}
