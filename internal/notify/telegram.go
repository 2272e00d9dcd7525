// Package notify пересылает уведомления админам в Telegram.
// Уведомления — побочный эффект: их ошибка логируется и никогда
// не откатывает операцию, которая их вызвала.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/config"
)

// Notifier отправляет текстовое уведомление.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Telegram рассылает уведомление во все админские чаты.
type Telegram struct {
	bot     *telego.Bot
	chatIDs []int64
}

// NewTelegram создаёт клиента Bot API.
func NewTelegram(cfg *config.Config) (*Telegram, error) {
	bot, err := telego.NewBot(cfg.TelegramBotToken,
		telego.WithDefaultLogger(cfg.AppEnv == "development", true),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	return &Telegram{bot: bot, chatIDs: cfg.AdminChatIDs}, nil
}

// Notify отправляет text в каждый чат. Ошибка одного чата не мешает остальным.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range t.chatIDs {
		if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
			log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки уведомления")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		log.WithField("chat_id", chatID).Debug("notification sent")
	}
	return errors.Join(errs...)
}

// Nop — уведомления отключены.
type Nop struct{}

// Notify ничего не делает.
func (Nop) Notify(context.Context, string) error { return nil }

// New возвращает Telegram, если задан токен, иначе Nop.
func New(cfg *config.Config) (Notifier, error) {
	if cfg.TelegramBotToken == "" {
		log.Info("TELEGRAM_BOT_TOKEN не задан, уведомления отключены")
		return Nop{}, nil
	}
	return NewTelegram(cfg)
}

// Async отправляет уведомление в фоне с собственным таймаутом,
// чтобы медленный Telegram не задерживал ответ клиенту.
func Async(n Notifier, timeout time.Duration, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := n.Notify(ctx, text); err != nil {
			log.WithError(err).Warn("Уведомление не доставлено")
		}
	}()
}
