// Package events — pglisten.go переносит pg_notify('entity_changes', ...)
// из PostgreSQL в локальную шину. Нужен, когда инстансов несколько:
// запись на одном инстансе инвалидирует кеш на всех.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Channel — имя канала LISTEN/NOTIFY, в который пишут триггеры.
const Channel = "entity_changes"

// unlistenTimeout — сколько ждём UNLISTEN перед возвратом соединения в пул
const unlistenTimeout = 5 * time.Second

// Listener слушает канал и публикует события в шину.
type Listener struct {
	pool *pgxpool.Pool
	bus  Publisher
	// Пауза перед переподключением после обрыва
	retryDelay time.Duration
}

// NewListener создаёт слушателя канала entity_changes.
func NewListener(pool *pgxpool.Pool, bus Publisher) *Listener {
	return &Listener{pool: pool, bus: bus, retryDelay: 5 * time.Second}
}

// Run блокируется до отмены ctx, переподключаясь при ошибках.
func (l *Listener) Run(ctx context.Context) {
	log.WithField("channel", Channel).Info("Слушатель изменений запущен")
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			log.Info("Слушатель изменений остановлен")
			return
		}
		log.WithError(err).Warn("Слушатель изменений отключился, переподключаемся")

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer releaseListening(conn)

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		e, ok := ParsePayload(n.Payload)
		if !ok {
			log.WithField("payload", n.Payload).Warn("Некорректное уведомление об изменении")
			continue
		}
		l.bus.Publish(e)
	}
}

// listeningConn — соединение пула, на котором выполнялся LISTEN.
type listeningConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Release()
	Hijack() *pgx.Conn
}

// releaseListening снимает подписки и возвращает соединение в пул.
// UNLISTEN идёт в своём контексте: ctx слушателя к этому моменту обычно
// отменён. Если снять подписки не удалось, соединение закрывается мимо пула.
func releaseListening(conn listeningConn) {
	ctx, cancel := context.WithTimeout(context.Background(), unlistenTimeout)
	defer cancel()

	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		log.WithError(err).Warn("Не удалось снять LISTEN, закрываем соединение")
		if raw := conn.Hijack(); raw != nil {
			_ = raw.Close(ctx)
		}
		return
	}
	conn.Release()
}

// ParsePayload разбирает JSON, который формирует триггер notify_entity_change().
func ParsePayload(payload string) (Event, bool) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, false
	}
	if e.Entity == "" || e.Kind == "" {
		return Event{}, false
	}
	return e, true
}
