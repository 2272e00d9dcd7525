// Package market пересылает котировки CoinGecko и CoinMarketCap клиенту.
// Ключи API хранятся на сервере, клиент получает только готовый снимок.
package market

import (
	"context"
	"sync"
	"time"
)

// Quote — котировка одного тикера в USD.
type Quote struct {
	Symbol    string    `json:"symbol"`
	PriceUSD  float64   `json:"price_usd"`
	Change24h float64   `json:"change_24h"` // Процент за 24 часа
	MarketCap float64   `json:"market_cap"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot — последний удачный набор котировок.
type Snapshot struct {
	Quotes    []Quote   `json:"quotes"`
	Provider  string    `json:"provider"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

// Provider получает котировки у внешнего API.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbols []string) ([]Quote, error)
}

// Store хранит снимок в памяти процесса.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	maxAge   time.Duration
	now      func() time.Time
}

// NewStore создаёт хранилище. Снимок старше maxAge отдаётся со Stale=true.
func NewStore(maxAge time.Duration) *Store {
	return &Store{maxAge: maxAge, now: time.Now}
}

// Set заменяет снимок.
func (s *Store) Set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
}

// Snapshot возвращает копию текущего снимка.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Quotes = append([]Quote(nil), s.snapshot.Quotes...)
	if snap.Quotes == nil {
		snap.Quotes = []Quote{}
	}
	snap.Stale = snap.FetchedAt.IsZero() || s.now().Sub(snap.FetchedAt) > s.maxAge
	return snap
}
