// Package profiles хранит локальную копию пользователей провайдера
// идентификации. Запись создаётся лениво при первом авторизованном запросе.
// models.go описывает структуру профиля.
package profiles

import (
	"time"

	"github.com/google/uuid"
)

// Profile — пользователь платформы.
type Profile struct {
	UserID     uuid.UUID `db:"user_id" json:"user_id"`           // UUID из claim sub
	CreatedAt  time.Time `db:"created_at" json:"created_at"`     // Первое обращение к сервису
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"` // Последнее обращение
}
