package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/metrics"
)

// Refresher обновляет снимок, перебирая провайдеров по порядку.
type Refresher struct {
	providers []Provider
	store     *Store
	symbols   []string
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewRefresher создаёт обновлятор. Первый провайдер — основной,
// остальные используются, если предыдущие не ответили.
func NewRefresher(store *Store, symbols []string, m *metrics.Metrics, providers ...Provider) *Refresher {
	return &Refresher{providers: providers, store: store, symbols: symbols, metrics: m, now: time.Now}
}

// Refresh получает котировки и заменяет снимок. Если все провайдеры
// ответили ошибкой, старый снимок остаётся и возвращается ErrExternalService.
func (r *Refresher) Refresh(ctx context.Context) error {
	if len(r.symbols) == 0 || len(r.providers) == 0 {
		return nil
	}

	var errs []error
	for _, p := range r.providers {
		quotes, err := p.Fetch(ctx, r.symbols)
		r.metrics.ObserveMarketRefresh(p.Name(), err)
		if err != nil {
			log.WithError(err).WithField("provider", p.Name()).Warn("Ошибка получения котировок")
			errs = append(errs, err)
			continue
		}

		r.store.Set(Snapshot{Quotes: quotes, Provider: p.Name(), FetchedAt: r.now().UTC()})
		log.WithFields(log.Fields{
			"provider": p.Name(),
			"quotes":   len(quotes),
		}).Debug("Котировки обновлены")
		return nil
	}
	return fmt.Errorf("%w: %w", common.ErrExternalService, errors.Join(errs...))
}
