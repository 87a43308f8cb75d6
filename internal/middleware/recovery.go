package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"engagehub/internal/response"
	"engagehub/internal/services"

	"go.uber.org/zap"
)

// Recovery turns a handler panic into a masked 500 response
func Recovery(builder *response.Builder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Let net/http abort the connection as it normally would
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				GetRequestLogger(r.Context()).Error("Panic recovered",
					zap.String("event", "panic_recovered"),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)

				builder.WriteError(w, r, services.NewInternalError("request handler panicked", fmt.Errorf("panic: %v", rec)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
