// pkg/middleware/recover.go
package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"athyper/pkg/problems"
)

// Recover turns a handler panic into a problem+json 500 instead of a
// torn connection. The request id is attached so the operator can match
// the response to the logged stack.
func Recover(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					reqid := RequestIDFrom(r.Context())
					log.Errorw("panic", "err", rec, "reqid", reqid, "stack", string(debug.Stack()))
					problems.Write(w, http.StatusInternalServerError, "internal", "internal error", "request "+reqid, "")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
