// Package logins — трекер ежедневных входов пользователя.
// models.go описывает событие входа и результат трекинга.
package logins

import (
	"time"

	"github.com/google/uuid"
)

// LoginEvent — факт входа пользователя в конкретный день (UTC).
// Уникален по (user_id, login_date), никогда не изменяется и не удаляется.
type LoginEvent struct {
	UserID    uuid.UUID `db:"user_id"`
	LoginDate time.Time `db:"login_date"` // Календарная дата UTC
	CreatedAt time.Time `db:"created_at"`
}

// TrackResult — ответ TrackLogin.
type TrackResult struct {
	// true только для первого вызова за день
	IsNewLogin bool   `json:"is_new_login"`
	LoginDate  string `json:"login_date,omitempty"`
}
