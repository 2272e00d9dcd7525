// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: обновление котировок со случайным
// сдвигом и полуночный (UTC) сброс дневных представлений.
package jobs

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/cache"
)

// dayViewPrefixes — представления, привязанные к UTC-дню
var dayViewPrefixes = []string{"streak:", "limit:"}

// MarketRefresher обновляет снимок котировок.
type MarketRefresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	market   MarketRefresher
	cache    cache.Cache
	interval time.Duration
	jitter   time.Duration
	timeout  time.Duration
	rnd      *rand.Rand
}

// NewScheduler создаёт планировщик в UTC: дневные границы сервиса — UTC.
// market может быть nil, если котировки отключены.
func NewScheduler(market MarketRefresher, c cache.Cache, interval, jitter, timeout time.Duration) *Scheduler {
	logger := cron.PrintfLogger(log.StandardLogger())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		market:   market,
		cache:    c,
		interval: interval,
		jitter:   jitter,
		timeout:  timeout,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.market != nil {
		spec := fmt.Sprintf("@every %s", s.interval)
		if _, err := s.cron.AddFunc(spec, func() { s.refreshWithJitter(ctx) }); err != nil {
			return fmt.Errorf("ошибка регистрации обновления котировок: %w", err)
		}
		// Первый снимок не ждёт интервала
		go s.RefreshMarket(ctx)
	}

	if _, err := s.cron.AddFunc("0 0 * * *", func() { s.PurgeDayViews(ctx) }); err != nil {
		return fmt.Errorf("ошибка регистрации полуночного сброса: %w", err)
	}

	s.cron.Start()
	log.WithField("market_interval", s.interval).Info("Планировщик задач запущен (UTC)")
	return nil
}

// Stop останавливает планировщик и ждёт текущие задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// refreshWithJitter сдвигает запуск на случайную задержку до jitter,
// чтобы инстансы не ходили к провайдерам одновременно.
func (s *Scheduler) refreshWithJitter(ctx context.Context) {
	if s.jitter > 0 {
		delay := time.Duration(s.rnd.Int63n(int64(s.jitter)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
	s.RefreshMarket(ctx)
}

// RefreshMarket обновляет котировки с таймаутом.
func (s *Scheduler) RefreshMarket(ctx context.Context) {
	if s.market == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.market.Refresh(ctx); err != nil {
		log.WithError(err).Warn("[CRON] Котировки не обновлены, остаётся прежний снимок")
	}
}

// PurgeDayViews удаляет кеш дневных представлений после полуночи UTC.
func (s *Scheduler) PurgeDayViews(ctx context.Context) {
	log.Info("[CRON] Сброс дневных представлений")
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	for _, prefix := range dayViewPrefixes {
		if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
			log.WithError(err).WithField("prefix", prefix).Error("[CRON] Ошибка сброса кеша")
		}
	}
}
