// Package cache хранит производные представления (окно стрика, состояние
// лимита) между запросами. Представления пересчитываются, только когда
// шина событий сообщает об изменении данных конкретного пользователя.
package cache

import (
	"context"
	"time"
)

// Cache — хранилище сериализованных представлений по ключу.
type Cache interface {
	// Get декодирует значение в dst. found=false, если ключа нет или он истёк.
	Get(ctx context.Context, key string, dst any) (found bool, err error)
	// Set сохраняет значение на ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// DeletePrefix удаляет все ключи с префиксом.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Nop — кеш, который ничего не хранит.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) DeletePrefix(context.Context, string) error            { return nil }
