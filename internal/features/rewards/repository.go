// Package rewards — repository.go работает с таблицей reward_grants.
package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/db/postgres"
	"serotonyl.ru/tradedesk/internal/features/wallet"
)

// Repository выдаёт награды и читает историю выдач.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий наград.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GrantOnce атомарно ставит маркер цикла и начисляет bots бесплатных ботов.
//
// Маркер и начисление живут в одной транзакции: если начисление не прошло,
// маркер откатывается и следующий вызов попробует снова. Если маркер уже
// есть (повтор, параллельный запрос), возвращается false без начисления.
func (r *Repository) GrantOnce(ctx context.Context, userID uuid.UUID, cycleStart time.Time, streak int, bots int64) (bool, error) {
	granted := false
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO reward_grants (user_id, cycle_start, streak)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, cycle_start) DO NOTHING
		`, userID, cycleStart, streak)
		if err != nil {
			return fmt.Errorf("ошибка записи маркера награды: %w", postgres.Classify(err))
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		description := fmt.Sprintf("Награда за стрик %d %s", streak, common.PluralizeDays(streak))
		if err := wallet.Credit(ctx, tx, userID, bots, wallet.TxTypeStreakReward, description); err != nil {
			return fmt.Errorf("%w: %v", common.ErrExternalService, err)
		}
		granted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

// ListByUser возвращает выдачи пользователя, свежие первыми.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Grant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, cycle_start, streak, granted_at
		FROM reward_grants
		WHERE user_id = $1
		ORDER BY cycle_start DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения наград: %w", postgres.Classify(err))
	}
	defer rows.Close()

	grants := []Grant{}
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.UserID, &g.CycleStart, &g.Streak, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования награды: %w", postgres.Classify(err))
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения наград: %w", postgres.Classify(err))
	}
	return grants, nil
}
