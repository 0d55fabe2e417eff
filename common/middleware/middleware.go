// common/middleware/middleware.go
package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
)

// Compose chains middlewares; the first one is the outermost.
func Compose(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Recover turns a handler panic into a 500 and logs it.
func Recover(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("http: panic recovered",
						zap.String("path", r.URL.Path),
						zap.String("panic", fmt.Sprint(rec)),
					)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
