package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/events"
)

// PrefixFunc возвращает префиксы ключей, которые устарели для пользователя.
type PrefixFunc func(userID uuid.UUID) []string

// Invalidator подписывается на шину и удаляет только затронутые ключи.
type Invalidator struct {
	cache   Cache
	gens    *Generations
	rules   map[events.Entity][]PrefixFunc
	timeout time.Duration
}

// NewInvalidator создаёт инвалидатор без правил.
func NewInvalidator(c Cache, timeout time.Duration) *Invalidator {
	return &Invalidator{cache: c, rules: make(map[events.Entity][]PrefixFunc), timeout: timeout}
}

// WithGenerations подключает счётчик поколений. Поколение поднимается
// до удаления ключей.
func (inv *Invalidator) WithGenerations(g *Generations) *Invalidator {
	inv.gens = g
	return inv
}

// On регистрирует правило: изменение entity делает устаревшими ключи fn(user).
func (inv *Invalidator) On(entity events.Entity, fn PrefixFunc) *Invalidator {
	inv.rules[entity] = append(inv.rules[entity], fn)
	return inv
}

// Handle — обработчик для events.Bus.Subscribe.
func (inv *Invalidator) Handle(e events.Event) {
	fns := inv.rules[e.Entity]
	if len(fns) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), inv.timeout)
	defer cancel()

	for _, fn := range fns {
		for _, prefix := range fn(e.UserID) {
			if inv.gens != nil {
				inv.gens.Bump(prefix)
			}
			if err := inv.cache.DeletePrefix(ctx, prefix); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"event":  e.String(),
					"prefix": prefix,
				}).Warn("Не удалось инвалидировать кеш")
			}
		}
	}
}
