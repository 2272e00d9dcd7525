// Package common — pluralize.go содержит функции для правильного
// склонения русских числительных в уведомлениях.
package common

import (
	"fmt"
	"math"
)

// pluralize выбирает форму слова по правилам русского языка.
//
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralize(n int64, one, few, many string) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
func PluralizeDays(n int) string {
	return pluralize(int64(n), "день", "дня", "дней")
}

// PluralizeBots возвращает правильную форму слова «бот» для числа n.
//
// Примеры:
//
//	PluralizeBots(1)  → "бот"
//	PluralizeBots(3)  → "бота"
//	PluralizeBots(11) → "ботов"
func PluralizeBots(n int64) string {
	return pluralize(n, "бот", "бота", "ботов")
}

// FormatBots создаёт строку вида "+1 бот" или "-2 бота".
func FormatBots(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%d %s", amount, PluralizeBots(amount))
	}
	return fmt.Sprintf("%d %s", amount, PluralizeBots(amount))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}
