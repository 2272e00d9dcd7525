// Package logins — service.go содержит трекер входов.
package logins

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/events"
	"serotonyl.ru/tradedesk/internal/metrics"
	"serotonyl.ru/tradedesk/internal/session"
)

// Store — операции хранилища, нужные трекеру.
type Store interface {
	Insert(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error)
}

// Tracker записывает вход пользователя не более одного раза в день.
type Tracker struct {
	store   Store
	bus     events.Publisher
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewTracker создаёт трекер входов.
func NewTracker(store Store, bus events.Publisher, m *metrics.Metrics, timeout time.Duration) *Tracker {
	return &Tracker{store: store, bus: bus, metrics: m, timeout: timeout}
}

// TrackLogin записывает вход за UTC-день now.
//
// Аноним получает пустой результат без ошибки. Гонка двух вкладок
// разрешается уникальным ключом: вторая вставка возвращает IsNewLogin=false.
// Награды здесь не считаются — это отдельный шаг.
func (t *Tracker) TrackLogin(ctx context.Context, id session.Identity, now time.Time) (TrackResult, error) {
	if id.IsAnonymous() {
		return TrackResult{}, nil
	}

	today := common.UTCDate(now)
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	isNew, err := t.store.Insert(ctx, id.UserID, today)
	if errors.Is(err, common.ErrConflict) {
		// Ожидаемый идемпотентный путь
		isNew, err = false, nil
	}
	if err != nil {
		return TrackResult{}, err
	}

	t.metrics.ObserveLogin(isNew)
	if isNew {
		t.bus.Publish(events.Event{
			Entity: events.EntityLoginEvent,
			UserID: id.UserID,
			Kind:   events.KindCreated,
		})
		log.WithFields(log.Fields{
			"user_id": id.UserID,
			"date":    common.FormatDate(today),
		}).Debug("Новый вход за день")
	}

	return TrackResult{IsNewLogin: isNew, LoginDate: common.FormatDate(today)}, nil
}
