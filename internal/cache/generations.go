package cache

import (
	"context"
	"sync"
	"time"
)

// Generations считает инвалидации по префиксам ключей.
//
// Сервис запоминает поколение префикса до чтения хранилища и после записи
// в кеш сверяет его снова: если между ними прошла инвалидация, запись
// удаляется. Так поздний Set не переживает событие об изменении.
type Generations struct {
	mu  sync.RWMutex
	gen map[string]uint64
}

// NewGenerations создаёт пустой счётчик.
func NewGenerations() *Generations {
	return &Generations{gen: make(map[string]uint64)}
}

// Bump отмечает инвалидацию префикса.
func (g *Generations) Bump(prefix string) {
	g.mu.Lock()
	g.gen[prefix]++
	g.mu.Unlock()
}

// Current возвращает поколение ключей с префиксом prefix. Учитываются
// и более общие префиксы по границам ':' ("limit:" покрывает "limit:<id>:").
func (g *Generations) Current(prefix string) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var sum uint64
	for i := 0; i < len(prefix); i++ {
		if prefix[i] == ':' {
			sum += g.gen[prefix[:i+1]]
		}
	}
	if n := len(prefix); n > 0 && prefix[n-1] != ':' {
		sum += g.gen[prefix]
	}
	return sum
}

// SetIfCurrent пишет value под key, только если поколение prefix всё ещё
// равно seen. Инвалидация, пришедшая во время записи, удаляет ключ.
// Возвращает false, если значение в кеше не осталось.
func (g *Generations) SetIfCurrent(ctx context.Context, c Cache, prefix string, seen uint64, key string, value any, ttl time.Duration) (bool, error) {
	if g.Current(prefix) != seen {
		return false, nil
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}
	if g.Current(prefix) != seen {
		return false, c.DeletePrefix(ctx, key)
	}
	return true, nil
}
