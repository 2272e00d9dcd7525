package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

type entry struct {
	data    []byte
	expires time.Time
}

// Memory — кеш в памяти процесса. Значения хранятся в JSON,
// поэтому вызывающий не может испортить закешированную копию.
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// NewMemory создаёт пустой кеш в памяти.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]entry), now: time.Now}
}

// Get читает значение, истёкшие записи считаются отсутствующими.
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expires) {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set сохраняет значение на ttl.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = entry{data: data, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// DeletePrefix удаляет ключи с префиксом и заодно вычищает истёкшие.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.items {
		if strings.HasPrefix(k, prefix) || !now.Before(e.expires) {
			delete(m.items, k)
		}
	}
	return nil
}

// Len возвращает число записей (включая ещё не вычищенные истёкшие).
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
