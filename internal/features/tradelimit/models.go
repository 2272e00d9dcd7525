// Package tradelimit ограничивает число ботов, которые пользователь
// может создать за UTC-день. Лимит берётся из ранга пользователя.
package tradelimit

import (
	"time"

	"github.com/google/uuid"
)

// Tier — ранг с дневным лимитом. Управляется админами.
type Tier struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	DailyTrades int    `db:"daily_trades" json:"daily_trades"`
	SortOrder   int    `db:"sort_order" json:"sort_order"` // Меньше — ниже ранг
}

// State — ответ GetLimitState.
type State struct {
	DailyLimit int    `json:"daily_limit"`
	UsedToday  int    `json:"used_today"`
	Remaining  int    `json:"remaining"` // Никогда не отрицательный
	CanCreate  bool   `json:"can_create"`
	Tier       string `json:"tier,omitempty"`
	ResetsAt   string `json:"resets_at,omitempty"` // Следующая полночь UTC

	Stale bool `json:"stale,omitempty"`
}

// Bot — созданный торговый бот.
type Bot struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Symbol         string    `db:"symbol" json:"symbol"`
	Strategy       string    `db:"strategy" json:"strategy"`
	FromFreeCredit bool      `db:"from_free_credit" json:"from_free_credit"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// CreateBotRequest — тело POST /api/bots.
type CreateBotRequest struct {
	Symbol     string `json:"symbol"`
	Strategy   string `json:"strategy"`
	UseFreeBot bool   `json:"use_free_bot"` // Потратить бесплатного бота вместо дневного лимита
}

// CreateOutcome — результат создания в хранилище.
type CreateOutcome struct {
	Bot  *Bot
	Tier Tier
	Used int // Использовано за день после создания
}

// Derive считает состояние гейта по лимиту и числу созданных ботов.
func Derive(limit, used int) State {
	if limit < 0 {
		limit = 0
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return State{
		DailyLimit: limit,
		UsedToday:  used,
		Remaining:  remaining,
		CanCreate:  used < limit,
	}
}
