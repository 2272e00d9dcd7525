// Package postgres — вспомогательные функции для работы с БД.
// queries.go содержит выполнение миграций, транзакции и классификацию ошибок.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tradedesk/internal/common"
)

// Коды SQLSTATE, которые нам важны
const (
	codeUniqueViolation = "23505"
	// Класс 08 — ошибки соединения
	classConnection = "08"
	// Класс 57 — вмешательство оператора (например, admin_shutdown)
	classOperator = "57"
	// Класс 40 — откат транзакции (serialization_failure, deadlock)
	classRollback = "40"
)

// ExecMigrationSQL выполняет один SQL-запрос миграции в транзакции.
// Возвращает applied=false, если версия уже была применена.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) (bool, error) {
	applied := false
	err := WithTx(ctx, pool, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("ошибка проверки миграции: %w", err)
		}
		if exists {
			return nil
		}

		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)", version,
		); err != nil {
			return fmt.Errorf("ошибка записи версии миграции: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// WithTx выполняет fn в транзакции. Любая ошибка fn откатывает транзакцию,
// иначе транзакция фиксируется.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", Classify(err))
	}
	// После Commit откат — no-op
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", Classify(err))
	}
	return nil
}

// Classify оборачивает ошибку pgx в ошибку из общей таксономии,
// сохраняя исходную цепочку для логов.
//
//   - pgx.ErrNoRows → common.ErrNotFound
//   - 23505 unique_violation → common.ErrConflict
//   - сеть, таймаут, классы 08/57/40 → common.ErrStoreUnavailable
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrConflict) ||
		errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", common.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%w: %v", common.ErrConflict, err)
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == classConnection ||
			pgErr.Code[:2] == classOperator || pgErr.Code[:2] == classRollback):
			return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return err
}
