// Package rewards — service.go проверяет право на награду и выдаёт её.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/events"
	"serotonyl.ru/tradedesk/internal/features/logins"
	"serotonyl.ru/tradedesk/internal/features/streak"
	"serotonyl.ru/tradedesk/internal/metrics"
	"serotonyl.ru/tradedesk/internal/notify"
	"serotonyl.ru/tradedesk/internal/session"
)

// GrantStore — атомарная выдача награды.
type GrantStore interface {
	GrantOnce(ctx context.Context, userID uuid.UUID, cycleStart time.Time, streak int, bots int64) (bool, error)
}

// LoginTracker — первый шаг CheckIn.
type LoginTracker interface {
	TrackLogin(ctx context.Context, id session.Identity, now time.Time) (logins.TrackResult, error)
}

// StreakSource считает стрик.
type StreakSource interface {
	ComputeStreak(ctx context.Context, id session.Identity, now time.Time) (streak.Result, error)
	Fresh(ctx context.Context, id session.Identity, now time.Time) (streak.Result, error)
	Goal() int
}

// Evaluator решает, заработан ли бесплатный бот, и выдаёт его.
type Evaluator struct {
	store    GrantStore
	tracker  LoginTracker
	streaks  StreakSource
	bus      events.Publisher
	notifier notify.Notifier
	metrics  *metrics.Metrics
	bots     int64
	timeout  time.Duration
}

// Options собирает зависимости Evaluator.
type Options struct {
	Store    GrantStore
	Tracker  LoginTracker
	Streaks  StreakSource
	Bus      events.Publisher
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Bots     int64         // Сколько бесплатных ботов за цикл
	Timeout  time.Duration // Таймаут вызова хранилища
}

// NewEvaluator создаёт сервис наград.
func NewEvaluator(o Options) *Evaluator {
	if o.Bus == nil {
		o.Bus = events.Nop{}
	}
	if o.Notifier == nil {
		o.Notifier = notify.Nop{}
	}
	if o.Bots <= 0 {
		o.Bots = 1
	}
	return &Evaluator{
		store:    o.Store,
		tracker:  o.Tracker,
		streaks:  o.Streaks,
		bus:      o.Bus,
		notifier: o.Notifier,
		metrics:  o.Metrics,
		bots:     o.Bots,
		timeout:  o.Timeout,
	}
}

// EvaluateReward выдаёт награду за цикл cycleStart, если стрик currentStreak
// закрывает день цели.
//
// Значения клиента сверяются со свежим расчётом из хранилища: награда
// выдаётся, только если сервер видит тот же стрик и тот же цикл и сегодняшний
// вход уже записан. Повторный вызов для того же цикла возвращает false.
func (e *Evaluator) EvaluateReward(ctx context.Context, id session.Identity, currentStreak int, cycleStart, now time.Time) (EvaluateResult, error) {
	if id.IsAnonymous() {
		return EvaluateResult{}, nil
	}
	if !streak.GoalReached(currentStreak, e.streaks.Goal()) {
		return EvaluateResult{}, nil
	}

	fresh, err := e.streaks.Fresh(ctx, id, now)
	if err != nil {
		return EvaluateResult{}, err
	}
	if !fresh.RewardEligible ||
		fresh.CurrentStreak != currentStreak ||
		fresh.CycleStart != common.FormatDate(cycleStart) {
		log.WithFields(log.Fields{
			"user_id":       id.UserID,
			"client_streak": currentStreak,
			"server_streak": fresh.CurrentStreak,
			"client_cycle":  common.FormatDate(cycleStart),
			"server_cycle":  fresh.CycleStart,
		}).Debug("Запрос награды не совпал с расчётом сервера")
		return EvaluateResult{}, nil
	}

	return e.grant(ctx, id.UserID, common.UTCDate(cycleStart), currentStreak)
}

// CheckIn выполняет заход пользователя целиком: записывает вход,
// считает стрик из хранилища и, если сегодня день цели, выдаёт награду.
// При недоступном хранилище в Streak отдаётся последний удачный расчёт.
func (e *Evaluator) CheckIn(ctx context.Context, id session.Identity, now time.Time) (CheckInResult, error) {
	var res CheckInResult

	login, err := e.tracker.TrackLogin(ctx, id, now)
	if err != nil {
		return res, err
	}
	res.Login = login

	// Кешированное окно могло быть посчитано до записи входа
	st, err := e.streaks.Fresh(ctx, id, now)
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			res.Streak, _ = e.streaks.ComputeStreak(ctx, id, now)
		}
		return res, err
	}
	res.Streak = st

	if id.IsAnonymous() || !st.RewardEligible {
		return res, nil
	}

	cycleStart, err := st.CycleStartDate()
	if err != nil {
		return res, fmt.Errorf("ошибка разбора начала цикла: %w", err)
	}
	res.Reward, err = e.grant(ctx, id.UserID, cycleStart, st.CurrentStreak)
	return res, err
}

func (e *Evaluator) grant(ctx context.Context, userID uuid.UUID, cycleStart time.Time, currentStreak int) (EvaluateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	granted, err := e.store.GrantOnce(ctx, userID, cycleStart, currentStreak, e.bots)
	if err != nil {
		if errors.Is(err, common.ErrExternalService) {
			e.metrics.ObserveRewardFailure()
		}
		log.WithError(err).WithFields(log.Fields{
			"user_id":     userID,
			"cycle_start": common.FormatDate(cycleStart),
		}).Error("Ошибка выдачи награды за стрик")
		return EvaluateResult{}, err
	}
	if !granted {
		return EvaluateResult{}, nil
	}

	e.metrics.ObserveRewardGranted()
	e.bus.Publish(events.Event{Entity: events.EntityRewardGrant, UserID: userID, Kind: events.KindCreated})
	e.bus.Publish(events.Event{Entity: events.EntityWallet, UserID: userID, Kind: events.KindUpdated})

	log.WithFields(log.Fields{
		"user_id":     userID,
		"cycle_start": common.FormatDate(cycleStart),
		"streak":      currentStreak,
	}).Info("Выдана награда за стрик")

	notify.Async(e.notifier, e.timeout, fmt.Sprintf(
		"🎁 Награда за стрик\nПользователь: %s\nСтрик: %d %s\nНачислено: %s",
		userID, currentStreak, common.PluralizeDays(currentStreak), common.FormatBots(e.bots),
	))

	return EvaluateResult{NewFreeBotEarned: true}, nil
}
