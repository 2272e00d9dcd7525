// Package profiles — repository.go отвечает за операции с таблицей profiles.
package profiles

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tradedesk/internal/db/postgres"
)

// Repository работает с таблицей profiles.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий профилей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Ensure создаёт профиль, если его нет, и обновляет last_seen_at.
// Один запрос: параллельные вызовы не конфликтуют.
func (r *Repository) Ensure(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET last_seen_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ошибка создания профиля (user_id=%s): %w", userID, postgres.Classify(err))
	}
	return nil
}

// GetByUserID возвращает профиль. Нет записи — common.ErrNotFound.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	query := `SELECT user_id, created_at, last_seen_at FROM profiles WHERE user_id = $1`
	var p Profile
	if err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.CreatedAt, &p.LastSeenAt); err != nil {
		return nil, fmt.Errorf("профиль не найден (user_id=%s): %w", userID, postgres.Classify(err))
	}
	return &p, nil
}
