// Package streak — calculator.go содержит чистый расчёт окна стрика.
package streak

import (
	"sort"
	"time"

	"serotonyl.ru/tradedesk/internal/common"
)

// Calculate строит представление стрика по датам входов.
//
// Правила:
//   - prior — непрерывная серия дней, заканчивающаяся вчера;
//   - текущий стрик = prior + 1, если сегодня вход уже записан, иначе prior.
//     Пока пользователь не зашёл сегодня, серия не считается прерванной;
//   - день цикла = prior mod 7 + 1, слот сегодняшнего дня;
//   - начало цикла = сегодня - (день цикла - 1).
//
// Даты могут идти в любом порядке и повторяться. goal — номер слота,
// за который выдаётся бесплатный бот (1..7).
func Calculate(dates []time.Time, now time.Time, goal int) Result {
	if goal < 1 || goal > CycleDays {
		goal = CycleDays
	}

	today := common.UTCDate(now)
	logged := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		logged[common.UTCDate(d)] = true
	}
	todayLogged := logged[today]

	// Идём назад от вчера до первого пропуска
	prior := 0
	for d := common.AddDays(today, -1); logged[d]; d = common.AddDays(d, -1) {
		prior++
	}

	current := prior
	if todayLogged {
		current++
	}

	dayInCycle := prior%CycleDays + 1
	cycleStart := common.AddDays(today, -(dayInCycle - 1))

	days := make([]Day, CycleDays)
	for i := range days {
		slot := i + 1
		day := Day{
			DayNumber:     slot,
			GrantsFreeBot: slot == goal,
		}
		switch {
		case slot < dayInCycle:
			date := common.AddDays(cycleStart, i)
			s := common.FormatDate(date)
			day.Date = &s
			day.IsLoggedIn = logged[date]
		case slot == dayInCycle:
			s := common.FormatDate(today)
			day.Date = &s
			day.IsToday = true
			day.IsLoggedIn = todayLogged
		default:
			day.IsFuture = true
		}
		days[i] = day
	}

	return Result{
		CurrentStreak:     current,
		StreakDays:        days,
		CurrentDayInCycle: dayInCycle,
		CycleStart:        common.FormatDate(cycleStart),
		LongestStreak:     common.MaxInt(longest(logged), current),
		TotalLogins:       len(logged),
		TodayLoggedIn:     todayLogged,
		RewardEligible:    todayLogged && dayInCycle == goal,
	}
}

// GoalReached сообщает, что стрик длины streak закрывает день цели цикла.
func GoalReached(streak, goal int) bool {
	if goal < 1 || goal > CycleDays {
		goal = CycleDays
	}
	return streak > 0 && (streak-1)%CycleDays+1 == goal
}

// longest возвращает самую длинную серию подряд идущих дат.
func longest(logged map[time.Time]bool) int {
	if len(logged) == 0 {
		return 0
	}
	sorted := make([]time.Time, 0, len(logged))
	for d := range logged {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	best, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if common.DaysBetween(sorted[i-1], sorted[i]) == 1 {
			run++
		} else {
			run = 1
		}
		best = common.MaxInt(best, run)
	}
	return best
}
