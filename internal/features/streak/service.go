// Package streak — service.go загружает входы и кеширует окно стрика.
package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/cache"
	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/session"
)

// lkgTTL — сколько хранится последний удачный расчёт
const lkgTTL = 7 * 24 * time.Hour

// Store отдаёт даты входов пользователя.
type Store interface {
	ListDates(ctx context.Context, userID uuid.UUID) ([]time.Time, error)
}

// Service считает стрик для пользователя.
type Service struct {
	store   Store
	cache   cache.Cache
	gens    *cache.Generations
	goal    int
	timeout time.Duration
	viewTTL time.Duration
}

// NewService создаёт сервис стриков.
func NewService(store Store, c cache.Cache, goal int, timeout, viewTTL time.Duration) *Service {
	return &Service{store: store, cache: c, gens: cache.NewGenerations(), goal: goal, timeout: timeout, viewTTL: viewTTL}
}

// WithGenerations подключает общий с инвалидатором счётчик поколений.
func (s *Service) WithGenerations(g *cache.Generations) *Service {
	s.gens = g
	return s
}

// Goal возвращает номер дня цели в цикле.
func (s *Service) Goal() int {
	return s.goal
}

// CachePrefix — префикс представлений стрика пользователя.
// Инвалидируется событием о новом входе.
func CachePrefix(userID uuid.UUID) string {
	return "streak:" + userID.String() + ":"
}

func viewKey(userID uuid.UUID, today time.Time) string {
	return CachePrefix(userID) + common.FormatDate(today)
}

func lkgKey(userID uuid.UUID) string {
	return "lkg:streak:" + userID.String()
}

// ComputeStreak возвращает окно стрика на дату now.
//
// Аноним получает окно без истории. Если хранилище недоступно, вместе
// с ErrStoreUnavailable возвращается последний удачный расчёт (Stale=true),
// если он есть.
//
// В кеш попадает только окно с записанным сегодняшним входом: до входа
// окно может устареть в любой момент.
func (s *Service) ComputeStreak(ctx context.Context, id session.Identity, now time.Time) (Result, error) {
	if id.IsAnonymous() {
		return Calculate(nil, now, s.goal), nil
	}

	today := common.UTCDate(now)
	key := viewKey(id.UserID, today)

	var cached Result
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.WithError(err).WithField("key", key).Warn("Ошибка чтения кеша стрика")
	} else if found {
		return cached, nil
	}

	prefix := CachePrefix(id.UserID)
	seen := s.gens.Current(prefix)

	res, err := s.compute(ctx, id.UserID, now)
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return s.lastKnownGood(ctx, id.UserID, err)
		}
		return Result{}, err
	}

	if res.TodayLoggedIn {
		if _, err := s.gens.SetIfCurrent(ctx, s.cache, prefix, seen, key, res, s.viewTTL); err != nil {
			log.WithError(err).WithField("key", key).Warn("Ошибка записи кеша стрика")
		}
	}
	if err := s.cache.Set(ctx, lkgKey(id.UserID), res, lkgTTL); err != nil {
		log.WithError(err).Warn("Ошибка сохранения последнего расчёта стрика")
	}
	return res, nil
}

// Fresh считает стрик напрямую из хранилища, минуя кеш.
// Нужен начислению наград, где устаревшее представление недопустимо.
func (s *Service) Fresh(ctx context.Context, id session.Identity, now time.Time) (Result, error) {
	if id.IsAnonymous() {
		return Calculate(nil, now, s.goal), nil
	}
	return s.compute(ctx, id.UserID, now)
}

func (s *Service) compute(ctx context.Context, userID uuid.UUID, now time.Time) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dates, err := s.store.ListDates(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("ошибка загрузки входов: %w", err)
	}
	return Calculate(dates, now, s.goal), nil
}

func (s *Service) lastKnownGood(ctx context.Context, userID uuid.UUID, cause error) (Result, error) {
	var res Result
	found, err := s.cache.Get(ctx, lkgKey(userID), &res)
	if err != nil || !found {
		return Result{}, cause
	}
	log.WithField("user_id", userID).Warn("Хранилище недоступно, отдаём последний расчёт стрика")
	res.Stale = true
	return res, cause
}
