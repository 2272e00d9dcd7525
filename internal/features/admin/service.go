// Package admin — service.go содержит вход в админку и операции с рангами.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/events"
	"serotonyl.ru/tradedesk/internal/features/rewards"
	"serotonyl.ru/tradedesk/internal/features/tradelimit"
	"serotonyl.ru/tradedesk/internal/session"
)

// maxTierNameLen — ограничение длины имени ранга
const maxTierNameLen = 64

// AttemptStore хранит попытки входа.
type AttemptStore interface {
	LogAttempt(ctx context.Context, userID uuid.UUID, success bool) error
	RecentFailures(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// TierStore управляет рангами.
type TierStore interface {
	ListTiers(ctx context.Context) ([]tradelimit.Tier, error)
	UpsertTier(ctx context.Context, t tradelimit.Tier) (tradelimit.Tier, error)
	AssignTier(ctx context.Context, userID uuid.UUID, tierName string) error
}

// GrantLister читает историю наград.
type GrantLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]rewards.Grant, error)
}

// BotGranter начисляет бесплатных ботов.
type BotGranter interface {
	Grant(ctx context.Context, userID uuid.UUID, amount int64, description string) error
}

// TokenIssuer выпускает админский токен.
type TokenIssuer interface {
	Issue(id session.Identity, ttl time.Duration) (string, error)
}

// Deps — зависимости сервиса админки.
type Deps struct {
	Attempts     AttemptStore
	Tiers        TierStore
	Grants       GrantLister
	Bots         BotGranter
	Issuer       TokenIssuer
	Bus          events.Publisher
	PasswordHash string
	TokenTTL     time.Duration
	Timeout      time.Duration
}

// Service управляет админкой.
type Service struct {
	Deps
	now func() time.Time
}

// NewService создаёт сервис админки.
func NewService(d Deps) *Service {
	if d.Bus == nil {
		d.Bus = events.Nop{}
	}
	return &Service{Deps: d, now: time.Now}
}

// Login проверяет пароль администратора и выдаёт админский токен.
// Включает защиту от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) Login(ctx context.Context, id session.Identity, password string) (LoginResponse, error) {
	if id.IsAnonymous() {
		return LoginResponse{}, common.ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	failures, err := s.Attempts.RecentFailures(ctx, id.UserID, s.now().Add(-AttemptWindow))
	if err != nil {
		return LoginResponse{}, err
	}
	if failures >= MaxFailedAttempts {
		log.WithField("user_id", id.UserID).Warn("Вход в админку заблокирован")
		return LoginResponse{}, common.ErrTooManyAttempts
	}

	match := VerifyPassword(password, s.PasswordHash)
	if err := s.Attempts.LogAttempt(ctx, id.UserID, match); err != nil {
		log.WithError(err).Error("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("user_id", id.UserID).Warn("Неверный пароль админки")
		return LoginResponse{}, common.ErrWrongPassword
	}

	token, err := s.Issuer.Issue(session.Identity{UserID: id.UserID, Role: session.RoleAdmin}, s.TokenTTL)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("ошибка выпуска токена: %w", err)
	}

	log.WithField("user_id", id.UserID).Info("Вход в админку")
	return LoginResponse{Token: token, ExpiresAt: s.now().Add(s.TokenTTL).UTC()}, nil
}

// ListTiers возвращает все ранги.
func (s *Service) ListTiers(ctx context.Context, id session.Identity) ([]tradelimit.Tier, error) {
	if !id.IsAdmin() {
		return nil, common.ErrNotAdmin
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	return s.Tiers.ListTiers(ctx)
}

// SaveTier создаёт ранг или меняет его лимит.
func (s *Service) SaveTier(ctx context.Context, id session.Identity, t tradelimit.Tier) (tradelimit.Tier, error) {
	if !id.IsAdmin() {
		return tradelimit.Tier{}, common.ErrNotAdmin
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" || len([]rune(t.Name)) > maxTierNameLen {
		return tradelimit.Tier{}, fmt.Errorf("%w: имя ранга от 1 до %d символов", common.ErrInvalidInput, maxTierNameLen)
	}
	if t.DailyTrades < 0 {
		return tradelimit.Tier{}, fmt.Errorf("%w: daily_trades не может быть отрицательным", common.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	saved, err := s.Tiers.UpsertTier(ctx, t)
	if err != nil {
		return tradelimit.Tier{}, err
	}

	// Ранг общий: устаревает лимит всех пользователей
	s.Bus.Publish(events.Event{Entity: events.EntityRankTier, Kind: events.KindUpdated})
	log.WithFields(log.Fields{
		"tier":         saved.Name,
		"daily_trades": saved.DailyTrades,
		"admin":        id.UserID,
	}).Info("Ранг сохранён")
	return saved, nil
}

// AssignTier назначает пользователю ранг.
func (s *Service) AssignTier(ctx context.Context, id session.Identity, userID uuid.UUID, tierName string) error {
	if !id.IsAdmin() {
		return common.ErrNotAdmin
	}
	tierName = strings.TrimSpace(tierName)
	if tierName == "" {
		return fmt.Errorf("%w: не указан ранг", common.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.Tiers.AssignTier(ctx, userID, tierName); err != nil {
		return err
	}

	s.Bus.Publish(events.Event{Entity: events.EntityUserRank, UserID: userID, Kind: events.KindUpdated})
	log.WithFields(log.Fields{
		"user_id": userID,
		"tier":    tierName,
		"admin":   id.UserID,
	}).Info("Ранг назначен")
	return nil
}

// ListGrants возвращает награды пользователя.
func (s *Service) ListGrants(ctx context.Context, id session.Identity, userID uuid.UUID) ([]rewards.Grant, error) {
	if !id.IsAdmin() {
		return nil, common.ErrNotAdmin
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	return s.Grants.ListByUser(ctx, userID)
}

// GrantBots начисляет пользователю бесплатных ботов вручную.
func (s *Service) GrantBots(ctx context.Context, id session.Identity, userID uuid.UUID, req GrantBotsRequest) error {
	if !id.IsAdmin() {
		return common.ErrNotAdmin
	}
	return s.Bots.Grant(ctx, userID, req.Amount, strings.TrimSpace(req.Description))
}
