package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/classbridge/ptohub/platform/go/apierror"
	platformlogging "github.com/classbridge/ptohub/platform/go/logging"
	"github.com/classbridge/ptohub/platform/go/respond"
)

// Recoverer converts handler panics into an INTERNAL_SERVER_ERROR envelope
// instead of chi's plain-text 500. It must run inside RequestLogger so the
// panic is logged with request context.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if logger := platformlogging.FromRequest(r, nil); logger != nil {
					logger.Error("handler panic",
						zap.Any("panic", rec),
						zap.Stack("stacktrace"),
					)
				}
				respond.Error(w, r, apierror.Internal("something went wrong"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
