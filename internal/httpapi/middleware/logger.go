// Package middleware содержит промежуточные обработчики HTTP для логирования,
// восстановления после паники, rate-limiting и определения пользователя.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/session"
)

// Logger логирует каждый запрос: метод, путь, статус, длительность, пользователь.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		fields := log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote":      r.RemoteAddr,
			"request_id":  chimw.GetReqID(r.Context()),
		}
		if id := session.FromContext(r.Context()); !id.IsAnonymous() {
			fields["user_id"] = id.UserID
		}

		entry := log.WithFields(fields)
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			entry.Warn("HTTP запрос завершился ошибкой")
		default:
			entry.Debug("HTTP запрос")
		}
	})
}
