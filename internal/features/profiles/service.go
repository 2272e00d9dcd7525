// Package profiles — service.go регистрирует пользователей при первом обращении.
package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/session"
)

// Store — операции хранилища, нужные сервису.
type Store interface {
	Ensure(ctx context.Context, userID uuid.UUID) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

// Service управляет профилями.
type Service struct {
	store   Store
	timeout time.Duration
}

// NewService создаёт сервис профилей.
func NewService(store Store, timeout time.Duration) *Service {
	return &Service{store: store, timeout: timeout}
}

// EnsureProfile гарантирует, что у пользователя есть профиль.
// Для анонима ничего не делает.
func (s *Service) EnsureProfile(ctx context.Context, id session.Identity) error {
	if id.IsAnonymous() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Ensure(ctx, id.UserID)
}

// Get возвращает профиль пользователя.
func (s *Service) Get(ctx context.Context, id session.Identity) (*Profile, error) {
	if id.IsAnonymous() {
		return nil, common.ErrUnauthenticated
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.GetByUserID(ctx, id.UserID)
}
