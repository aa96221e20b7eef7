package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"teaching-workload/pkg/apierror"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			slog.Error("panic recovered",
				"method", r.Method,
				"path", r.URL.Path,
				"error", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
			apierror.Write(w, r, fmt.Errorf("panic: %v", recovered))
		}()

		next.ServeHTTP(w, r)
	})
}
