// Package streak считает недельную серию входов пользователя.
// models.go описывает производное представление стрика. Оно не хранится
// в базе и пересчитывается из login_events при каждом запросе.
package streak

import "time"

// CycleDays — длина цикла стрика. Окно всегда содержит ровно 7 слотов.
const CycleDays = 7

// Day — один слот недельного окна.
type Day struct {
	DayNumber     int     `json:"day_number"`     // 1..7
	Date          *string `json:"date"`           // nil для будущих дней
	IsLoggedIn    bool    `json:"is_logged_in"`
	IsToday       bool    `json:"is_today"`
	IsFuture      bool    `json:"is_future"`
	GrantsFreeBot bool    `json:"grants_free_bot"` // Только день цели
}

// Result — ответ ComputeStreak.
type Result struct {
	CurrentStreak     int    `json:"current_streak"`
	StreakDays        []Day  `json:"streak_days"`
	CurrentDayInCycle int    `json:"current_day_in_cycle"`
	CycleStart        string `json:"cycle_start"`

	LongestStreak  int  `json:"longest_streak"`
	TotalLogins    int  `json:"total_logins"`
	TodayLoggedIn  bool `json:"today_logged_in"`
	RewardEligible bool `json:"reward_eligible"` // Сегодня день цели и вход записан

	// Stale — данные из последнего удачного расчёта, хранилище недоступно
	Stale bool `json:"stale,omitempty"`
}

// CycleStartDate разбирает CycleStart обратно в дату.
func (r Result) CycleStartDate() (time.Time, error) {
	return time.Parse(time.DateOnly, r.CycleStart)
}
