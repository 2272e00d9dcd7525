package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/events"
	"serotonyl.ru/tradedesk/internal/metrics"
	"serotonyl.ru/tradedesk/internal/notify"
	"serotonyl.ru/tradedesk/internal/session"
)

// Gateway создаёт платёж у провайдера.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error)
}

// Store хранит депозиты.
type Store interface {
	Insert(ctx context.Context, d *Deposit) error
	UpdateStatus(ctx context.Context, paymentID, status string) (*Deposit, string, error)
}

// Options собирает зависимости Service.
type Options struct {
	Gateway     Gateway
	Store       Store
	Bus         events.Publisher
	Notifier    notify.Notifier
	Metrics     *metrics.Metrics
	IPNSecret   string
	CallbackURL string
	Enabled     bool
	Timeout     time.Duration // Таймаут хранилища
	HTTPTimeout time.Duration // Таймаут вызова NowPayments
}

// Service — депозиты через NowPayments.
type Service struct {
	opts Options
}

// NewService создаёт сервис платежей.
func NewService(o Options) *Service {
	if o.Bus == nil {
		o.Bus = events.Nop{}
	}
	if o.Notifier == nil {
		o.Notifier = notify.Nop{}
	}
	return &Service{opts: o}
}

// CreateDeposit создаёт платёж у NowPayments и сохраняет депозит.
func (s *Service) CreateDeposit(ctx context.Context, id session.Identity, req CreateDepositRequest) (*Deposit, error) {
	if !s.opts.Enabled {
		return nil, common.ErrPaymentsDisabled
	}
	if id.IsAnonymous() {
		return nil, common.ErrUnauthenticated
	}

	req.PriceCurrency = strings.ToLower(strings.TrimSpace(req.PriceCurrency))
	req.PayCurrency = strings.ToLower(strings.TrimSpace(req.PayCurrency))
	if req.PriceCurrency == "" {
		req.PriceCurrency = "usd"
	}
	if req.PriceAmount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if req.PayCurrency == "" {
		return nil, fmt.Errorf("%w: pay_currency обязателен", common.ErrInvalidInput)
	}

	orderID := uuid.New()
	hctx, cancel := context.WithTimeout(ctx, s.opts.HTTPTimeout)
	payment, err := s.opts.Gateway.CreatePayment(hctx, PaymentRequest{
		PriceAmount:      req.PriceAmount,
		PriceCurrency:    req.PriceCurrency,
		PayCurrency:      req.PayCurrency,
		IPNCallbackURL:   s.opts.CallbackURL,
		OrderID:          orderID.String(),
		OrderDescription: "Пополнение " + id.UserID.String(),
	})
	cancel()
	if err != nil {
		log.WithError(err).WithField("user_id", id.UserID).Error("Ошибка создания платежа")
		return nil, fmt.Errorf("%w: %v", common.ErrExternalService, err)
	}

	status := payment.PaymentStatus
	if status == "" {
		status = StatusWaiting
	}
	d := &Deposit{
		PaymentID:     payment.PaymentID.String(),
		UserID:        id.UserID,
		PriceAmount:   req.PriceAmount,
		PriceCurrency: req.PriceCurrency,
		PayCurrency:   req.PayCurrency,
		PayAddress:    payment.PayAddress,
		PayAmount:     payment.PayAmount,
		Status:        status,
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.opts.Store.Insert(sctx, d); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    id.UserID,
		"payment_id": d.PaymentID,
		"amount":     d.PriceAmount,
	}).Info("Создан депозит")
	return d, nil
}

// HandleIPN проверяет подпись и применяет новый статус платежа.
// При переходе в finished админам уходит уведомление.
func (s *Service) HandleIPN(ctx context.Context, body []byte, signature string) (IPNResult, error) {
	if !Verify(s.opts.IPNSecret, body, signature) {
		s.opts.Metrics.ObserveIPN("bad_signature")
		return IPNResult{}, common.ErrBadSignature
	}

	var ipn IPN
	if err := json.Unmarshal(body, &ipn); err != nil {
		return IPNResult{}, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	paymentID := ipn.PaymentID.String()
	status := strings.ToLower(strings.TrimSpace(ipn.PaymentStatus))
	if paymentID == "" || status == "" {
		return IPNResult{}, fmt.Errorf("%w: нет payment_id или payment_status", common.ErrInvalidInput)
	}
	s.opts.Metrics.ObserveIPN(status)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	d, previous, err := s.opts.Store.UpdateStatus(ctx, paymentID, status)
	if errors.Is(err, common.ErrNotFound) {
		log.WithField("payment_id", paymentID).Warn("IPN для неизвестного платежа")
		return IPNResult{Status: "unknown"}, nil
	}
	if err != nil {
		return IPNResult{}, err
	}

	log.WithFields(log.Fields{
		"payment_id": paymentID,
		"status":     status,
		"previous":   previous,
	}).Info("Статус депозита обновлён")

	s.opts.Bus.Publish(events.Event{Entity: events.EntityDeposit, UserID: d.UserID, Kind: events.KindUpdated})

	if status == StatusFinished && previous != StatusFinished {
		notify.Async(s.opts.Notifier, s.opts.HTTPTimeout, fmt.Sprintf(
			"💰 Депозит зачислен\nПользователь: %s\nСумма: %g %s\nОплачено: %g %s\nПлатёж: %s\nВремя: %s",
			d.UserID, d.PriceAmount, strings.ToUpper(d.PriceCurrency),
			ipn.ActuallyPaid, strings.ToUpper(d.PayCurrency), paymentID,
			common.FormatDateTime(d.UpdatedAt),
		))
	}
	return IPNResult{Status: "ok"}, nil
}
