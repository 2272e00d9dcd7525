// Package logins — repository.go выполняет операции с таблицей login_events.
package logins

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tradedesk/internal/db/postgres"
)

// Repository работает с таблицей login_events.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий входов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert записывает вход за день. Единственный механизм корректности —
// первичный ключ (user_id, login_date): повторная вставка ничего не делает
// и возвращает inserted=false. Проверки "сначала SELECT" здесь нет.
func (r *Repository) Insert(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	query := `
		INSERT INTO login_events (user_id, login_date)
		VALUES ($1, $2)
		ON CONFLICT (user_id, login_date) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, userID, day)
	if err != nil {
		return false, fmt.Errorf("ошибка записи входа (user_id=%s): %w", userID, postgres.Classify(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListDates возвращает все даты входов пользователя, самые свежие первыми.
func (r *Repository) ListDates(ctx context.Context, userID uuid.UUID) ([]time.Time, error) {
	query := `
		SELECT login_date
		FROM login_events
		WHERE user_id = $1
		ORDER BY login_date DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения входов: %w", postgres.Classify(err))
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", postgres.Classify(err))
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения входов: %w", postgres.Classify(err))
	}
	return dates, nil
}
