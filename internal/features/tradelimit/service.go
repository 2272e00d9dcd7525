// Package tradelimit — service.go содержит дневной гейт создания ботов.
package tradelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/cache"
	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/events"
	"serotonyl.ru/tradedesk/internal/metrics"
	"serotonyl.ru/tradedesk/internal/session"
)

// lkgTTL — сколько хранится последнее удачное состояние
const lkgTTL = 24 * time.Hour

// Store — операции хранилища, нужные гейту.
type Store interface {
	Snapshot(ctx context.Context, userID uuid.UUID, start, end time.Time) (Tier, int, error)
	CreateBot(ctx context.Context, userID uuid.UUID, req CreateBotRequest, start, end time.Time) (CreateOutcome, error)
}

// Gate отвечает, сколько ботов пользователь ещё может создать сегодня.
type Gate struct {
	store   Store
	cache   cache.Cache
	gens    *cache.Generations
	bus     events.Publisher
	metrics *metrics.Metrics
	timeout time.Duration
	viewTTL time.Duration
}

// NewGate создаёт гейт.
func NewGate(store Store, c cache.Cache, bus events.Publisher, m *metrics.Metrics, timeout, viewTTL time.Duration) *Gate {
	return &Gate{store: store, cache: c, gens: cache.NewGenerations(), bus: bus, metrics: m, timeout: timeout, viewTTL: viewTTL}
}

// WithGenerations подключает общий с инвалидатором счётчик поколений.
func (g *Gate) WithGenerations(gens *cache.Generations) *Gate {
	g.gens = gens
	return g
}

// CachePrefix — префикс представлений лимита пользователя.
// uuid.Nil даёт префикс всех пользователей (изменился сам ранг).
func CachePrefix(userID uuid.UUID) string {
	if userID == uuid.Nil {
		return "limit:"
	}
	return "limit:" + userID.String() + ":"
}

func lkgKey(userID uuid.UUID) string {
	return "lkg:limit:" + userID.String()
}

// GetLimitState возвращает состояние лимита на UTC-день now.
// Аноним получает нулевое состояние.
func (g *Gate) GetLimitState(ctx context.Context, id session.Identity, now time.Time) (State, error) {
	if id.IsAnonymous() {
		return State{}, nil
	}

	start, end := common.DayWindow(now)
	key := CachePrefix(id.UserID) + common.FormatDate(start)

	var cached State
	if found, err := g.cache.Get(ctx, key, &cached); err != nil {
		log.WithError(err).WithField("key", key).Warn("Ошибка чтения кеша лимита")
	} else if found {
		return cached, nil
	}

	prefix := CachePrefix(id.UserID)
	seen := g.gens.Current(prefix)

	sctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	tier, used, err := g.store.Snapshot(sctx, id.UserID, start, end)
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return g.lastKnownGood(ctx, id.UserID, err)
		}
		return State{}, err
	}

	state := withTier(Derive(tier.DailyTrades, used), tier, end)
	if _, err := g.gens.SetIfCurrent(ctx, g.cache, prefix, seen, key, state, g.viewTTL); err != nil {
		log.WithError(err).WithField("key", key).Warn("Ошибка записи кеша лимита")
	}
	if err := g.cache.Set(ctx, lkgKey(id.UserID), state, lkgTTL); err != nil {
		log.WithError(err).Warn("Ошибка сохранения последнего состояния лимита")
	}
	return state, nil
}

// CreateBot создаёт бота, если гейт разрешает.
// Отказ гейта — ErrDailyLimitReached; при use_free_bot лимит не проверяется,
// но списывается бесплатный бот (ErrNoFreeBots, если их нет).
func (g *Gate) CreateBot(ctx context.Context, id session.Identity, req CreateBotRequest, now time.Time) (*Bot, State, error) {
	if id.IsAnonymous() {
		return nil, State{}, common.ErrUnauthenticated
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	req.Strategy = strings.TrimSpace(req.Strategy)
	if req.Symbol == "" {
		return nil, State{}, fmt.Errorf("%w: symbol обязателен", common.ErrInvalidInput)
	}

	start, end := common.DayWindow(now)
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.store.CreateBot(ctx, id.UserID, req, start, end)
	if err != nil {
		if errors.Is(err, common.ErrDailyLimitReached) {
			g.metrics.ObserveGate(false)
			log.WithField("user_id", id.UserID).Info("Гейт отклонил создание бота")
		}
		return nil, State{}, err
	}
	g.metrics.ObserveGate(true)

	g.bus.Publish(events.Event{Entity: events.EntityTradingBot, UserID: id.UserID, Kind: events.KindCreated})
	if out.Bot.FromFreeCredit {
		g.bus.Publish(events.Event{Entity: events.EntityWallet, UserID: id.UserID, Kind: events.KindUpdated})
	}

	log.WithFields(log.Fields{
		"user_id":  id.UserID,
		"bot_id":   out.Bot.ID,
		"symbol":   out.Bot.Symbol,
		"free":     out.Bot.FromFreeCredit,
		"used":     out.Used,
		"tier":     out.Tier.Name,
	}).Info("Создан торговый бот")

	return out.Bot, withTier(Derive(out.Tier.DailyTrades, out.Used), out.Tier, end), nil
}

func withTier(s State, t Tier, resetsAt time.Time) State {
	s.Tier = t.Name
	s.ResetsAt = resetsAt.Format(time.RFC3339)
	return s
}

func (g *Gate) lastKnownGood(ctx context.Context, userID uuid.UUID, cause error) (State, error) {
	var s State
	found, err := g.cache.Get(ctx, lkgKey(userID), &s)
	if err != nil || !found {
		return State{}, cause
	}
	log.WithField("user_id", userID).Warn("Хранилище недоступно, отдаём последнее состояние лимита")
	s.Stale = true
	return s, cause
}
