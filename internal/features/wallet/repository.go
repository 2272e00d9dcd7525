// Package wallet — repository.go выполняет операции с таблицами
// bot_wallets и wallet_transactions.
//
// Credit и Debit принимают DBTX, чтобы начисление можно было выполнить
// внутри чужой транзакции: награда за стрик коммитится вместе с маркером,
// списание бесплатного бота — вместе с созданием бота.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/db/postgres"
)

// DBTX — общее подмножество pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Credit начисляет amount бесплатных ботов. Счёт создаётся при первом начислении.
func Credit(ctx context.Context, q DBTX, userID uuid.UUID, amount int64, txType, description string) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}

	_, err := q.Exec(ctx, `
		INSERT INTO bot_wallets (user_id, free_bots, total_granted, total_used)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET free_bots = bot_wallets.free_bots + EXCLUDED.free_bots,
		    total_granted = bot_wallets.total_granted + EXCLUDED.total_granted,
		    updated_at = NOW()
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("ошибка начисления: %w", postgres.Classify(err))
	}

	if err := insertTransaction(ctx, q, userID, amount, txType, description); err != nil {
		return err
	}
	return nil
}

// Debit списывает amount бесплатных ботов. Строка счёта блокируется
// FOR UPDATE, поэтому вызывать нужно внутри транзакции.
func Debit(ctx context.Context, q DBTX, userID uuid.UUID, amount int64, txType, description string) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}

	var current int64
	err := q.QueryRow(ctx, `
		SELECT free_bots FROM bot_wallets WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNoFreeBots
	}
	if err != nil {
		return fmt.Errorf("ошибка получения счёта: %w", postgres.Classify(err))
	}
	if current < amount {
		return common.ErrNoFreeBots
	}

	_, err = q.Exec(ctx, `
		UPDATE bot_wallets
		SET free_bots = free_bots - $2, total_used = total_used + $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("ошибка списания: %w", postgres.Classify(err))
	}

	return insertTransaction(ctx, q, userID, -amount, txType, description)
}

func insertTransaction(ctx context.Context, q DBTX, userID uuid.UUID, amount int64, txType, description string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO wallet_transactions (user_id, amount, tx_type, description)
		VALUES ($1, $2, $3, $4)
	`, userID, amount, txType, description)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", postgres.Classify(err))
	}
	return nil
}

// Repository предоставляет чтение счёта и начисления вне чужих транзакций.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий счетов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает счёт. Если записи нет, возвращается пустой счёт.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w := Wallet{UserID: userID}
	err := r.db.QueryRow(ctx, `
		SELECT free_bots, total_granted, total_used, updated_at
		FROM bot_wallets
		WHERE user_id = $1
	`, userID).Scan(&w.FreeBots, &w.TotalGranted, &w.TotalUsed, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения счёта: %w", postgres.Classify(err))
	}
	return &w, nil
}

// Transactions возвращает последние limit операций пользователя.
func (r *Repository) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount, tx_type, description, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", postgres.Classify(err))
	}
	defer rows.Close()

	txs := make([]Transaction, 0, limit)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.TxType, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", postgres.Classify(err))
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения транзакций: %w", postgres.Classify(err))
	}
	return txs, nil
}

// Grant начисляет ботов в собственной транзакции. Используется админкой.
func (r *Repository) Grant(ctx context.Context, userID uuid.UUID, amount int64, txType, description string) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return Credit(ctx, tx, userID, amount, txType, description)
	})
}
