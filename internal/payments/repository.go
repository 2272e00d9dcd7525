package payments

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tradedesk/internal/db/postgres"
)

// Repository работает с таблицей deposits.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий депозитов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert сохраняет новый депозит.
func (r *Repository) Insert(ctx context.Context, d *Deposit) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO deposits (payment_id, user_id, price_amount, price_currency, pay_currency, pay_address, pay_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, d.PaymentID, d.UserID, d.PriceAmount, d.PriceCurrency, d.PayCurrency, d.PayAddress, d.PayAmount, d.Status,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения депозита: %w", postgres.Classify(err))
	}
	return nil
}

// UpdateStatus меняет статус депозита и возвращает депозит вместе
// с предыдущим статусом. Неизвестный payment_id — ErrNotFound.
func (r *Repository) UpdateStatus(ctx context.Context, paymentID, status string) (*Deposit, string, error) {
	var d Deposit
	var previous string
	err := r.db.QueryRow(ctx, `
		WITH prev AS (
			SELECT payment_id, status FROM deposits WHERE payment_id = $1 FOR UPDATE
		)
		UPDATE deposits d
		SET status = $2, updated_at = NOW()
		FROM prev
		WHERE d.payment_id = prev.payment_id
		RETURNING d.payment_id, d.user_id, d.price_amount, d.price_currency, d.pay_currency,
		          d.pay_address, d.pay_amount, d.status, d.created_at, d.updated_at, prev.status
	`, paymentID, status).Scan(
		&d.PaymentID, &d.UserID, &d.PriceAmount, &d.PriceCurrency, &d.PayCurrency,
		&d.PayAddress, &d.PayAmount, &d.Status, &d.CreatedAt, &d.UpdatedAt, &previous,
	)
	if err != nil {
		return nil, "", fmt.Errorf("ошибка обновления депозита %s: %w", paymentID, postgres.Classify(err))
	}
	return &d, previous, nil
}
