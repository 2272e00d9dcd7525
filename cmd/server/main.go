// Package main — точка входа сервиса.
// Загружает конфигурацию, инициализирует приложение и запускает HTTP-сервер.
// Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/app"
	"serotonyl.ru/tradedesk/internal/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Настраиваем логирование
	setupLogging()

	log.Info("=== Сервис запускается ===")

	// .env нужен только локально, в контейнере переменные уже заданы
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Не удалось прочитать .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}

	// Контекст отменяется по Ctrl+C или docker stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.Close()

	log.Info("=== Сервис готов к работе ===")

	if err := application.Run(ctx, shutdownTimeout); err != nil {
		log.WithError(err).Error("Сервис остановлен с ошибкой")
		return
	}

	log.Info("=== Сервис остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
