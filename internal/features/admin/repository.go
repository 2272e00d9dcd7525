// Package admin — repository.go работает с таблицей admin_login_attempts.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tradedesk/internal/db/postgres"
)

// Repository работает с админ-таблицами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, userID uuid.UUID, success bool) error {
	query := `INSERT INTO admin_login_attempts (user_id, success) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, userID, success); err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", postgres.Classify(err))
	}
	return nil
}

// RecentFailures возвращает количество неудачных попыток начиная с since.
func (r *Repository) RecentFailures(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток: %w", postgres.Classify(err))
	}
	return count, nil
}
