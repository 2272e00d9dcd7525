package middleware

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/session"
)

// Resolver превращает заголовок Authorization в Identity.
type Resolver interface {
	ResolveHeader(header string) (session.Identity, error)
}

// ProfileEnsurer создаёт локальный профиль при первом запросе пользователя.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, id session.Identity) error
}

// Identity кладёт Identity в контекст запроса. Невалидный токен даёт
// анонима: фичи сами решают, что отдавать без сессии.
func Identity(resolver Resolver, profiles ProfileEnsurer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.ResolveHeader(r.Header.Get("Authorization"))
			if err != nil {
				log.WithError(err).Debug("Токен не принят, запрос анонимный")
				id = session.Anonymous
			}

			if !id.IsAnonymous() && profiles != nil {
				if err := profiles.EnsureProfile(r.Context(), id); err != nil {
					log.WithError(err).WithField("user_id", id.UserID).Warn("Не удалось создать профиль")
				}
			}

			next.ServeHTTP(w, r.WithContext(session.WithIdentity(r.Context(), id)))
		})
	}
}
