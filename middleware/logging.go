package middleware

import (
	"log/slog"
	"time"

	"github.com/broady/dynproxy"
)

// LoggingInterceptor creates an interceptor that logs proxy calls using slog.
// It logs the start and end of each call, including duration and error status.
func LoggingInterceptor(logger *slog.Logger) dynproxy.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return dynproxy.InterceptorFunc(func(inv *dynproxy.Invocation, next dynproxy.Handler) (any, error) {
		ctx := inv.Context()
		start := time.Now()

		logger.InfoContext(ctx, "call started",
			slog.String("member", inv.Name()),
			slog.Int("args", len(inv.Args)),
		)

		res, err := next(inv)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(ctx, "call failed",
				slog.String("member", inv.Name()),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
		} else {
			logger.InfoContext(ctx, "call completed",
				slog.String("member", inv.Name()),
				slog.Duration("duration", duration),
			)
		}

		return res, err
	})
}
