// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с UTC-датами, русская плюрализация, форматирование.
//
// Все дневные границы в сервисе считаются по UTC: и дата входа, и окно
// дневного лимита ботов. Локальное время клиента не учитывается.
package common

import (
	"math"
	"time"
)

// UTCDate возвращает календарную дату t в UTC (полночь, Location=UTC).
//
// Пример:
//
//	UTCDate(2024-03-05 01:30 +03:00) → 2024-03-04 00:00 UTC
func UTCDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayWindow возвращает полуинтервал [полночь UTC, полночь UTC + 24ч) для t.
func DayWindow(t time.Time) (start, end time.Time) {
	start = UTCDate(t)
	return start, start.AddDate(0, 0, 1)
}

// AddDays сдвигает дату на n календарных дней (n может быть отрицательным).
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// DaysBetween возвращает количество календарных дней от a до b по UTC.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(UTCDate(b).Sub(UTCDate(a)).Hours() / 24))
}

// FormatDate форматирует дату как 2006-01-02.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04 UTC".
// Используется в уведомлениях для админов.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04") + " UTC"
}

// MaxInt возвращает большее из двух чисел.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
