// Package payments принимает депозиты через NowPayments.
// Сервер создаёт платёж своим ключом API и принимает IPN-уведомления
// о смене статуса; сами деньги сервис не обрабатывает.
package payments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Статусы платежа NowPayments
const (
	StatusWaiting       = "waiting"
	StatusConfirming    = "confirming"
	StatusConfirmed     = "confirmed"
	StatusSending       = "sending"
	StatusPartiallyPaid = "partially_paid"
	StatusFinished      = "finished"
	StatusFailed        = "failed"
	StatusRefunded      = "refunded"
	StatusExpired       = "expired"
)

// Deposit — состояние платежа, зеркало NowPayments.
type Deposit struct {
	PaymentID     string    `db:"payment_id" json:"payment_id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	PriceAmount   float64   `db:"price_amount" json:"price_amount"`
	PriceCurrency string    `db:"price_currency" json:"price_currency"`
	PayCurrency   string    `db:"pay_currency" json:"pay_currency"`
	PayAddress    string    `db:"pay_address" json:"pay_address"`
	PayAmount     float64   `db:"pay_amount" json:"pay_amount"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CreateDepositRequest — тело POST /api/payments/deposits.
type CreateDepositRequest struct {
	PriceAmount   float64 `json:"price_amount"`
	PriceCurrency string  `json:"price_currency"`
	PayCurrency   string  `json:"pay_currency"`
}

// PaymentRequest — тело POST /v1/payment.
type PaymentRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	IPNCallbackURL   string  `json:"ipn_callback_url,omitempty"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description,omitempty"`
}

// Payment — ответ NowPayments о платеже.
type Payment struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	PayAddress    string      `json:"pay_address"`
	PayAmount     float64     `json:"pay_amount"`
	PayCurrency   string      `json:"pay_currency"`
	PriceAmount   float64     `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
	OrderID       string      `json:"order_id"`
}

// IPN — уведомление NowPayments о смене статуса.
type IPN struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	PayAddress    string      `json:"pay_address"`
	PriceAmount   float64     `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
	PayAmount     float64     `json:"pay_amount"`
	ActuallyPaid  float64     `json:"actually_paid"`
	PayCurrency   string      `json:"pay_currency"`
	OrderID       string      `json:"order_id"`
}

// IPNResult — ответ на IPN.
type IPNResult struct {
	Status string `json:"status"` // "ok", "unknown"
}
