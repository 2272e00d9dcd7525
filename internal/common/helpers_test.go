package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUTCDateIgnoresCallerZone(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)

	// 01:30 по Москве — это ещё предыдущий день по UTC
	got := UTCDate(time.Date(2024, 3, 5, 1, 30, 0, 0, msk))
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), got)
}

func TestDayWindowCoversLastSecond(t *testing.T) {
	lastSecond := time.Date(2024, 3, 4, 23, 59, 59, 0, time.UTC)
	start, end := DayWindow(lastSecond)

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), end)
	assert.True(t, !lastSecond.Before(start) && lastSecond.Before(end))

	// Для клиента в UTC+3 это уже 02:59 следующего дня, но окно то же
	local := lastSecond.In(time.FixedZone("MSK", 3*60*60))
	s2, e2 := DayWindow(local)
	assert.Equal(t, start, s2)
	assert.Equal(t, end, e2)
}

func TestDaysBetweenAcrossMonth(t *testing.T) {
	a := time.Date(2024, 2, 28, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
}

func TestPluralizeBots(t *testing.T) {
	cases := map[int64]string{
		0: "ботов", 1: "бот", 2: "бота", 4: "бота", 5: "ботов",
		11: "ботов", 12: "ботов", 21: "бот", 22: "бота", 111: "ботов",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeBots(n), "n=%d", n)
	}
	assert.Equal(t, "+1 бот", FormatBots(1))
	assert.Equal(t, "-3 бота", FormatBots(-3))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "950", FormatNumber(950))
	assert.Equal(t, "2 350", FormatNumber(2350))
	assert.Equal(t, "1 000 001", FormatNumber(1000001))
	assert.Equal(t, "-12 000", FormatNumber(-12000))
}
