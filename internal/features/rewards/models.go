// Package rewards начисляет бесплатного бота за закрытый недельный цикл.
// models.go описывает маркер выдачи и ответы операций.
package rewards

import (
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/tradedesk/internal/features/logins"
	"serotonyl.ru/tradedesk/internal/features/streak"
)

// Grant — маркер выдачи награды. Уникален по (user_id, cycle_start):
// за один цикл награда выдаётся не больше одного раза.
type Grant struct {
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	CycleStart time.Time `db:"cycle_start" json:"cycle_start"`
	Streak     int       `db:"streak" json:"streak"`
	GrantedAt  time.Time `db:"granted_at" json:"granted_at"`
}

// EvaluateResult — ответ EvaluateReward.
type EvaluateResult struct {
	NewFreeBotEarned bool `json:"new_free_bot_earned"`
}

// CheckInResult объединяет три шага одного захода пользователя.
type CheckInResult struct {
	Login  logins.TrackResult `json:"login"`
	Streak streak.Result      `json:"streak"`
	Reward EvaluateResult     `json:"reward"`
}
