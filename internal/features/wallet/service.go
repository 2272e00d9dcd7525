// Package wallet — service.go содержит чтение счёта и админские начисления.
package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/events"
	"serotonyl.ru/tradedesk/internal/session"
)

// historyLimit — сколько последних операций отдаётся вместе со счётом
const historyLimit = 20

// Store — операции хранилища, нужные сервису.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
	Grant(ctx context.Context, userID uuid.UUID, amount int64, txType, description string) error
}

// Service управляет счетами бесплатных ботов.
type Service struct {
	store   Store
	bus     events.Publisher
	timeout time.Duration
}

// NewService создаёт сервис счетов.
func NewService(store Store, bus events.Publisher, timeout time.Duration) *Service {
	return &Service{store: store, bus: bus, timeout: timeout}
}

// Summary возвращает счёт и последние операции. Аноним получает пустой счёт.
func (s *Service) Summary(ctx context.Context, id session.Identity) (Summary, error) {
	if id.IsAnonymous() {
		return Summary{Transactions: []Transaction{}}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w, err := s.store.Get(ctx, id.UserID)
	if err != nil {
		return Summary{}, err
	}
	txs, err := s.store.Transactions(ctx, id.UserID, historyLimit)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Wallet: *w, Transactions: txs}, nil
}

// Grant начисляет пользователю amount бесплатных ботов от имени админа.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, amount int64, description string) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if description == "" {
		description = "Начисление от администратора: " + common.FormatBots(amount)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Grant(ctx, userID, amount, TxTypeAdminGrant, description); err != nil {
		return err
	}

	s.bus.Publish(events.Event{Entity: events.EntityWallet, UserID: userID, Kind: events.KindUpdated})
	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
	}).Info("Админ начислил бесплатных ботов")
	return nil
}
