package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// Recover перехватывает панику обработчика и отвечает 500.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.WithFields(log.Fields{
				"component": "panic_recovery",
				"panic":     fmt.Sprintf("%v", rec),
				"path":      r.URL.Path,
				"stack":     string(debug.Stack()),
			}).Error("ПАНИКА в обработчике — восстановлено")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"внутренняя ошибка сервера"}`))
		}()
		next.ServeHTTP(w, r)
	})
}
