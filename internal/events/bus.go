// Package events — канал уведомлений об изменениях сущностей.
//
// Событие несёт идентичность изменённой сущности и тип изменения.
// Подписчик сам решает, нужно ли инвалидировать производное представление,
// вместо безусловного полного перезапроса на любое изменение.
package events

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Entity — тип изменённой сущности.
type Entity string

const (
	EntityLoginEvent  Entity = "login_event"
	EntityRewardGrant Entity = "reward_grant"
	EntityTradingBot  Entity = "trading_bot"
	EntityUserRank    Entity = "user_rank"
	EntityRankTier    Entity = "rank_tier"
	EntityWallet      Entity = "wallet"
	EntityDeposit     Entity = "deposit"
)

// Kind — тип изменения.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// Event — одно изменение. UserID пуст для глобальных сущностей (тиры).
type Event struct {
	Entity Entity    `json:"entity"`
	UserID uuid.UUID `json:"user_id"`
	Kind   Kind      `json:"kind"`
	At     time.Time `json:"at"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s/%s user=%s", e.Entity, e.Kind, e.UserID)
}

// Handler обрабатывает событие. Должен быть быстрым: вызывается синхронно.
type Handler func(Event)

// Publisher — то, что нужно сервисам, чтобы сообщить об изменении.
type Publisher interface {
	Publish(e Event)
}

// Bus — внутрипроцессная шина событий.
type Bus struct {
	mu   sync.RWMutex
	subs []Handler
}

// NewBus создаёт пустую шину.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe добавляет обработчик.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, h)
}

// Publish доставляет событие всем подписчикам. Паника подписчика
// логируется и не мешает остальным.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]Handler, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, h := range subs {
		deliver(h, e)
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"component": "events",
				"event":     e.String(),
				"panic":     fmt.Sprintf("%v", r),
				"stack":     string(debug.Stack()),
			}).Error("ПАНИКА в подписчике события — восстановлено")
		}
	}()
	h(e)
}

// Nop — Publisher, который ничего не делает.
type Nop struct{}

// Publish ничего не делает.
func (Nop) Publish(Event) {}
