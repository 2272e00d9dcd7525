// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	HTTPIdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	// Таймаут исходящих запросов к внешним API (CoinGecko, NowPayments, ...)
	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"10s"`

	// --- Auth ---
	// Общий секрет, которым провайдер идентификации подписывает JWT (HS256)
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// Секрет админских токенов. Должен отличаться от JWT_SECRET
	AdminJWTSecret string `envconfig:"ADMIN_JWT_SECRET" required:"true"`
	// Время жизни админского токена
	AdminTokenTTL     time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"12h"`
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Database ---
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"tradedesk"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"tradedesk"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Любой вызов хранилища ограничен этим таймаутом
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
	// Слушать pg_notify('entity_changes') для инвалидации кеша между инстансами
	DBListenChanges bool `envconfig:"DB_LISTEN_CHANGES" default:"true"`

	// --- Cache ---
	// Пусто = кеш в памяти процесса
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	ViewCacheTTL  time.Duration `envconfig:"VIEW_CACHE_TTL" default:"1m"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Telegram ---
	// Пустой токен отключает уведомления
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	AdminChatIDsRaw  string `envconfig:"ADMIN_CHAT_IDS" default:""`
	AdminChatIDs     []int64 `envconfig:"-"` // заполним вручную

	// --- Streak ---
	// День цикла, на котором выдаётся бесплатный бот (1..7)
	StreakWeeklyGoal int `envconfig:"STREAK_WEEKLY_GOAL" default:"7"`
	// Сколько бесплатных ботов начисляется за выполненный цикл
	StreakRewardBots int64 `envconfig:"STREAK_REWARD_BOTS" default:"1"`

	// --- Market ---
	MarketSymbols         string        `envconfig:"MARKET_SYMBOLS" default:"BTC,ETH,SOL,BNB,XRP"`
	MarketRefreshInterval time.Duration `envconfig:"MARKET_REFRESH_INTERVAL" default:"1m"`
	MarketRefreshJitter   time.Duration `envconfig:"MARKET_REFRESH_JITTER" default:"10s"`
	CoinGeckoBaseURL      string        `envconfig:"COINGECKO_BASE_URL" default:"https://api.coingecko.com/api/v3"`
	CoinMarketCapBaseURL  string        `envconfig:"CMC_BASE_URL" default:"https://pro-api.coinmarketcap.com"`
	// Пусто = CoinMarketCap не используется
	CoinMarketCapAPIKey string `envconfig:"CMC_API_KEY" default:""`

	// --- Payments ---
	NowPaymentsBaseURL   string `envconfig:"NOWPAYMENTS_BASE_URL" default:"https://api.nowpayments.io"`
	NowPaymentsAPIKey    string `envconfig:"NOWPAYMENTS_API_KEY" default:""`
	NowPaymentsIPNSecret string `envconfig:"NOWPAYMENTS_IPN_SECRET" default:""`
	NowPaymentsCallback  string `envconfig:"NOWPAYMENTS_CALLBACK_URL" default:""`

	// --- Rate Limiting ---
	RateLimitPerMinute float64 `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	RateLimitBurst     int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	// --- Feature Flags ---
	FeatureStreaksEnabled  bool `envconfig:"FEATURE_STREAKS_ENABLED" default:"true"`
	FeatureMarketEnabled   bool `envconfig:"FEATURE_MARKET_ENABLED" default:"true"`
	FeaturePaymentsEnabled bool `envconfig:"FEATURE_PAYMENTS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Symbols возвращает список тикеров для обновления котировок.
func (c *Config) Symbols() []string {
	var out []string
	for _, s := range strings.Split(c.MarketSymbols, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate проверяет взаимосвязанные настройки.
func (c *Config) Validate() error {
	if c.StreakWeeklyGoal < 1 || c.StreakWeeklyGoal > 7 {
		return fmt.Errorf("STREAK_WEEKLY_GOAL должен быть от 1 до 7")
	}
	if c.AdminJWTSecret == c.JWTSecret {
		return fmt.Errorf("ADMIN_JWT_SECRET должен отличаться от JWT_SECRET")
	}
	if c.StreakRewardBots <= 0 {
		return fmt.Errorf("STREAK_REWARD_BOTS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT должен быть > 0")
	}
	if c.MarketRefreshInterval <= 0 {
		return fmt.Errorf("MARKET_REFRESH_INTERVAL должен быть > 0")
	}
	if c.MarketRefreshJitter < 0 || c.MarketRefreshJitter >= c.MarketRefreshInterval {
		return fmt.Errorf("MARKET_REFRESH_JITTER должен быть в [0, MARKET_REFRESH_INTERVAL)")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE и RATE_LIMIT_BURST должны быть > 0")
	}
	if c.TelegramBotToken != "" && len(c.AdminChatIDs) == 0 {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN задан, но ADMIN_CHAT_IDS пуст")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminChatIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_CHAT_IDS parse: %w", err)
	}
	cfg.AdminChatIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
