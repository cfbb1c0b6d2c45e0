package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/broady/dynproxy"
)

// RecoveryInterceptor turns panics in the rest of the chain into
// [dynproxy.CodeInternal] errors. The panic value and stack are logged.
func RecoveryInterceptor(logger *slog.Logger) dynproxy.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return dynproxy.InterceptorFunc(func(inv *dynproxy.Invocation, next dynproxy.Handler) (res any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(inv.Context(), "PANIC recovered",
					slog.String("member", inv.Name()),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())))
				res = nil
				err = dynproxy.Errorf(dynproxy.CodeInternal, "panic in %s: %v", inv.Name(), rec).
					WithDetail("member", inv.ID().String())
			}
		}()
		return next(inv)
	})
}
