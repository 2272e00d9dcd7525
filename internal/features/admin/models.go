// Package admin реализует админку: вход по паролю и управление рангами.
// models.go описывает попытки входа и тела запросов.
package admin

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// Ограничения входа: 3 неудачные попытки за час блокируют вход
const (
	MaxFailedAttempts = 3
	AttemptWindow     = time.Hour
)

// LoginRequest — тело POST /api/admin/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse — выданный админский токен.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AssignTierRequest — тело PUT /api/admin/users/{id}/tier.
type AssignTierRequest struct {
	Tier string `json:"tier"`
}

// GrantBotsRequest — тело POST /api/admin/users/{id}/bots.
type GrantBotsRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}
