// Package tradelimit — repository.go работает с таблицами rank_tiers,
// user_ranks и trading_bots.
package tradelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/db/postgres"
	"serotonyl.ru/tradedesk/internal/features/wallet"
)

// Repository предоставляет методы для работы с рангами и ботами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий лимитов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// tierFor возвращает ранг пользователя. Без назначенного ранга — самый
// нижний по sort_order. Если рангов нет вовсе — ErrNotFound.
func tierFor(ctx context.Context, q wallet.DBTX, userID uuid.UUID) (Tier, error) {
	var t Tier
	err := q.QueryRow(ctx, `
		SELECT t.id, t.name, t.daily_trades, t.sort_order
		FROM user_ranks ur
		JOIN rank_tiers t ON t.id = ur.tier_id
		WHERE ur.user_id = $1
	`, userID).Scan(&t.ID, &t.Name, &t.DailyTrades, &t.SortOrder)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Tier{}, fmt.Errorf("ошибка получения ранга: %w", postgres.Classify(err))
	}

	err = q.QueryRow(ctx, `
		SELECT id, name, daily_trades, sort_order
		FROM rank_tiers
		ORDER BY sort_order ASC, id ASC
		LIMIT 1
	`).Scan(&t.ID, &t.Name, &t.DailyTrades, &t.SortOrder)
	if err != nil {
		return Tier{}, fmt.Errorf("ошибка получения ранга по умолчанию: %w", postgres.Classify(err))
	}
	return t, nil
}

// countInWindow считает ботов за [start, end), созданных в счёт дневного лимита.
func countInWindow(ctx context.Context, q wallet.DBTX, userID uuid.UUID, start, end time.Time) (int, error) {
	var used int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM trading_bots
		WHERE user_id = $1
		  AND created_at >= $2 AND created_at < $3
		  AND NOT from_free_credit
	`, userID, start, end).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта ботов: %w", postgres.Classify(err))
	}
	return used, nil
}

// Snapshot возвращает ранг и число ботов за окно.
func (r *Repository) Snapshot(ctx context.Context, userID uuid.UUID, start, end time.Time) (Tier, int, error) {
	tier, err := tierFor(ctx, r.db, userID)
	if err != nil {
		return Tier{}, 0, err
	}
	used, err := countInWindow(ctx, r.db, userID, start, end)
	if err != nil {
		return Tier{}, 0, err
	}
	return tier, used, nil
}

// CreateBot создаёт бота под рекомендательной блокировкой пользователя.
//
// Блокировка pg_advisory_xact_lock сериализует параллельные создания одного
// пользователя, поэтому пересчёт внутри транзакции видит все закоммиченные
// боты. Решение принимает гейт: база лимит не знает.
func (r *Repository) CreateBot(ctx context.Context, userID uuid.UUID, req CreateBotRequest, start, end time.Time) (CreateOutcome, error) {
	var out CreateOutcome
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID.String()); err != nil {
			return fmt.Errorf("ошибка блокировки: %w", postgres.Classify(err))
		}

		tier, err := tierFor(ctx, tx, userID)
		if err != nil {
			return err
		}
		used, err := countInWindow(ctx, tx, userID, start, end)
		if err != nil {
			return err
		}

		if req.UseFreeBot {
			err := wallet.Debit(ctx, tx, userID, 1, wallet.TxTypeBotSpent, "Создание бота "+req.Symbol)
			if err != nil {
				return err
			}
		} else if !Derive(tier.DailyTrades, used).CanCreate {
			return common.ErrDailyLimitReached
		}

		bot := &Bot{
			ID:             uuid.New(),
			UserID:         userID,
			Symbol:         req.Symbol,
			Strategy:       req.Strategy,
			FromFreeCredit: req.UseFreeBot,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO trading_bots (id, user_id, symbol, strategy, from_free_credit)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, bot.ID, bot.UserID, bot.Symbol, bot.Strategy, bot.FromFreeCredit).Scan(&bot.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка создания бота: %w", postgres.Classify(err))
		}

		if !req.UseFreeBot {
			used++
		}
		out = CreateOutcome{Bot: bot, Tier: tier, Used: used}
		return nil
	})
	return out, err
}

// ListTiers возвращает все ранги по возрастанию.
func (r *Repository) ListTiers(ctx context.Context) ([]Tier, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, daily_trades, sort_order
		FROM rank_tiers
		ORDER BY sort_order ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рангов: %w", postgres.Classify(err))
	}
	defer rows.Close()

	tiers := []Tier{}
	for rows.Next() {
		var t Tier
		if err := rows.Scan(&t.ID, &t.Name, &t.DailyTrades, &t.SortOrder); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ранга: %w", postgres.Classify(err))
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения рангов: %w", postgres.Classify(err))
	}
	return tiers, nil
}

// UpsertTier создаёт ранг или обновляет его лимит по имени.
func (r *Repository) UpsertTier(ctx context.Context, t Tier) (Tier, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO rank_tiers (name, daily_trades, sort_order)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET daily_trades = EXCLUDED.daily_trades, sort_order = EXCLUDED.sort_order
		RETURNING id
	`, t.Name, t.DailyTrades, t.SortOrder).Scan(&t.ID)
	if err != nil {
		return Tier{}, fmt.Errorf("ошибка сохранения ранга: %w", postgres.Classify(err))
	}
	return t, nil
}

// AssignTier назначает пользователю ранг по имени.
func (r *Repository) AssignTier(ctx context.Context, userID uuid.UUID, tierName string) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO user_ranks (user_id, tier_id)
		SELECT $1, id FROM rank_tiers WHERE name = $2
		ON CONFLICT (user_id) DO UPDATE
		SET tier_id = EXCLUDED.tier_id, updated_at = NOW()
	`, userID, tierName)
	if err != nil {
		return fmt.Errorf("ошибка назначения ранга: %w", postgres.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ранг %q: %w", tierName, common.ErrNotFound)
	}
	return nil
}
