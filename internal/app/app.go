// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, кеш, шину событий, репозитории,
// сервисы и HTTP-сервер.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/cache"
	"serotonyl.ru/tradedesk/internal/config"
	"serotonyl.ru/tradedesk/internal/db/postgres"
	"serotonyl.ru/tradedesk/internal/events"
	"serotonyl.ru/tradedesk/internal/features/admin"
	"serotonyl.ru/tradedesk/internal/features/logins"
	"serotonyl.ru/tradedesk/internal/features/profiles"
	"serotonyl.ru/tradedesk/internal/features/rewards"
	"serotonyl.ru/tradedesk/internal/features/streak"
	"serotonyl.ru/tradedesk/internal/features/tradelimit"
	"serotonyl.ru/tradedesk/internal/features/wallet"
	"serotonyl.ru/tradedesk/internal/httpapi"
	"serotonyl.ru/tradedesk/internal/httpapi/middleware"
	"serotonyl.ru/tradedesk/internal/jobs"
	"serotonyl.ru/tradedesk/internal/market"
	"serotonyl.ru/tradedesk/internal/metrics"
	"serotonyl.ru/tradedesk/internal/notify"
	"serotonyl.ru/tradedesk/internal/payments"
	"serotonyl.ru/tradedesk/internal/session"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *http.Server
	Scheduler *jobs.Scheduler
	Listener  *events.Listener
	DB        *pgxpool.Pool

	limiter *middleware.RateLimiter
	redis   *cache.Redis
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool, migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	a := &App{DB: pool}

	// === 2. Кеш и шина событий ===
	var viewCache cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		r, err := cache.NewRedis(ctx, cfg)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.redis = r
		viewCache = r
	}

	// Поколения защищают кеш от записи, опоздавшей после инвалидации
	gens := cache.NewGenerations()
	bus := events.NewBus()
	bus.Subscribe(cache.NewInvalidator(viewCache, cfg.StoreTimeout).
		WithGenerations(gens).
		On(events.EntityLoginEvent, one(streak.CachePrefix)).
		On(events.EntityRewardGrant, one(streak.CachePrefix)).
		On(events.EntityTradingBot, one(tradelimit.CachePrefix)).
		On(events.EntityUserRank, one(tradelimit.CachePrefix)).
		// Ранг общий: сбрасываем лимиты всех пользователей
		On(events.EntityRankTier, func(uuid.UUID) []string { return []string{tradelimit.CachePrefix(uuid.Nil)} }).
		Handle)

	if cfg.DBListenChanges {
		a.Listener = events.NewListener(pool, bus)
	}

	notifier, err := notify.New(cfg)
	if err != nil {
		a.closeStores()
		return nil, err
	}
	m := metrics.Default()

	// === 3. Репозитории ===
	profileRepo := profiles.NewRepository(pool)
	loginRepo := logins.NewRepository(pool)
	rewardRepo := rewards.NewRepository(pool)
	walletRepo := wallet.NewRepository(pool)
	limitRepo := tradelimit.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)
	paymentRepo := payments.NewRepository(pool)

	// === 4. Сервисы ===
	accessor := session.NewAccessor(cfg.JWTSecret, cfg.AdminJWTSecret)
	profileService := profiles.NewService(profileRepo, cfg.StoreTimeout)
	tracker := logins.NewTracker(loginRepo, bus, m, cfg.StoreTimeout)
	streakService := streak.NewService(loginRepo, viewCache, cfg.StreakWeeklyGoal, cfg.StoreTimeout, cfg.ViewCacheTTL).
		WithGenerations(gens)
	evaluator := rewards.NewEvaluator(rewards.Options{
		Store:    rewardRepo,
		Tracker:  tracker,
		Streaks:  streakService,
		Bus:      bus,
		Notifier: notifier,
		Metrics:  m,
		Bots:     cfg.StreakRewardBots,
		Timeout:  cfg.StoreTimeout,
	})
	walletService := wallet.NewService(walletRepo, bus, cfg.StoreTimeout)
	gate := tradelimit.NewGate(limitRepo, viewCache, bus, m, cfg.StoreTimeout, cfg.ViewCacheTTL).
		WithGenerations(gens)
	adminService := admin.NewService(admin.Deps{
		Attempts:     adminRepo,
		Tiers:        limitRepo,
		Grants:       rewardRepo,
		Bots:         walletService,
		Issuer:       accessor,
		Bus:          bus,
		PasswordHash: cfg.AdminPasswordHash,
		TokenTTL:     cfg.AdminTokenTTL,
		Timeout:      cfg.StoreTimeout,
	})

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	paymentService := payments.NewService(payments.Options{
		Gateway:     payments.NewClient(cfg.NowPaymentsBaseURL, cfg.NowPaymentsAPIKey, httpClient),
		Store:       paymentRepo,
		Bus:         bus,
		Notifier:    notifier,
		Metrics:     m,
		IPNSecret:   cfg.NowPaymentsIPNSecret,
		CallbackURL: cfg.NowPaymentsCallback,
		Enabled:     cfg.NowPaymentsAPIKey != "",
		Timeout:     cfg.StoreTimeout,
		HTTPTimeout: cfg.HTTPClientTimeout,
	})

	// === 5. Котировки и планировщик ===
	quotes := market.NewStore(3 * cfg.MarketRefreshInterval)
	var refresher jobs.MarketRefresher
	if cfg.FeatureMarketEnabled {
		providers := []market.Provider{market.NewCoinGecko(cfg.CoinGeckoBaseURL, httpClient)}
		if cfg.CoinMarketCapAPIKey != "" {
			providers = append(providers, market.NewCoinMarketCap(cfg.CoinMarketCapBaseURL, cfg.CoinMarketCapAPIKey, httpClient))
		}
		refresher = market.NewRefresher(quotes, cfg.Symbols(), m, providers...)
	}
	a.Scheduler = jobs.NewScheduler(refresher, viewCache, cfg.MarketRefreshInterval, cfg.MarketRefreshJitter, cfg.HTTPClientTimeout)

	// === 6. HTTP ===
	a.limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	router := httpapi.NewRouter(httpapi.RouterOptions{
		Handlers: &httpapi.Handlers{
			Profiles: profileService,
			Logins:   tracker,
			Streaks:  streakService,
			Rewards:  evaluator,
			Limits:   gate,
			Wallet:   walletService,
			Market:   quotes,
			Payments: paymentService,
			Admin:    adminService,
		},
		Resolver:        accessor,
		Profiles:        profileService,
		Limiter:         a.limiter,
		MarketEnabled:   cfg.FeatureMarketEnabled,
		PaymentsEnabled: cfg.FeaturePaymentsEnabled,
	})

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
	return a, nil
}

// Run запускает фоновые задачи и HTTP-сервер. Блокируется до отмены ctx,
// затем останавливает сервер, давая запросам shutdownTimeout на завершение.
func (a *App) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	if a.Listener != nil {
		go a.Listener.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", a.Server.Addr).Info("HTTP-сервер запущен")
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP-сервер упал: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP-сервера: %w", err)
	}
	log.Info("HTTP-сервер остановлен")
	return nil
}

// Close освобождает соединения. Вызывается после Run.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	a.closeStores()
}

func (a *App) closeStores() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	a.DB.Close()
}

func one(prefix func(uuid.UUID) string) cache.PrefixFunc {
	return func(userID uuid.UUID) []string {
		if userID == uuid.Nil {
			return nil
		}
		return []string{prefix(userID)}
	}
}
