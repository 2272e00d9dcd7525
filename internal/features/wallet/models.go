// Package wallet ведёт счёт бесплатных ботов пользователя.
// models.go описывает структуры для счёта и истории операций.
package wallet

import (
	"time"

	"github.com/google/uuid"
)

// Wallet представляет счёт бесплатных ботов.
// У пользователя не больше одной записи в bot_wallets; отсутствие записи
// равно пустому счёту.
type Wallet struct {
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	FreeBots     int64     `db:"free_bots" json:"free_bots"`         // Доступно сейчас
	TotalGranted int64     `db:"total_granted" json:"total_granted"` // Сколько всего начислено
	TotalUsed    int64     `db:"total_used" json:"total_used"`       // Сколько всего потрачено
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction — одно движение по счёту.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"-"`
	Amount      int64     `db:"amount" json:"amount"`   // Положительное — начисление, отрицательное — списание
	TxType      string    `db:"tx_type" json:"tx_type"` // Тип операции, см. TxType*
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Типы операций по счёту
const (
	TxTypeStreakReward = "streak_reward" // Награда за недельный стрик
	TxTypeBotSpent     = "bot_spent"     // Бесплатный бот потрачен на создание
	TxTypeAdminGrant   = "admin_grant"   // Начисление админом
)

// Summary — ответ GET /api/wallet.
type Summary struct {
	Wallet       Wallet        `json:"wallet"`
	Transactions []Transaction `json:"transactions"`
}
