package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-05-09 — четверг
var thursday = time.Date(2024, 5, 9, 15, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func days(offsets ...int) []time.Time {
	out := make([]time.Time, 0, len(offsets))
	for _, o := range offsets {
		out = append(out, day(o))
	}
	return out
}

func TestCalculateEmptyHistory(t *testing.T) {
	res := Calculate(nil, thursday, 7)

	assert.Equal(t, 0, res.CurrentStreak)
	assert.Equal(t, 1, res.CurrentDayInCycle)
	assert.Equal(t, "2024-05-09", res.CycleStart)
	require.Len(t, res.StreakDays, 7)

	assert.True(t, res.StreakDays[0].IsToday)
	require.NotNil(t, res.StreakDays[0].Date)
	assert.Equal(t, "2024-05-09", *res.StreakDays[0].Date)
	for i, d := range res.StreakDays {
		assert.False(t, d.IsLoggedIn, "slot %d", i+1)
		if i > 0 {
			assert.True(t, d.IsFuture)
			assert.Nil(t, d.Date)
		}
	}
	assert.True(t, res.StreakDays[6].GrantsFreeBot)
	assert.False(t, res.RewardEligible)
}

func TestCalculateTodayNotLoggedYet(t *testing.T) {
	// Пн, Вт, Ср — есть; Чт ещё нет
	res := Calculate(days(-3, -2, -1), thursday, 7)

	assert.Equal(t, 3, res.CurrentStreak)
	assert.Equal(t, 4, res.CurrentDayInCycle)
	assert.Equal(t, "2024-05-06", res.CycleStart)
	assert.False(t, res.TodayLoggedIn)

	for i := 0; i < 3; i++ {
		assert.True(t, res.StreakDays[i].IsLoggedIn)
		assert.False(t, res.StreakDays[i].IsFuture)
	}
	assert.True(t, res.StreakDays[3].IsToday)
	assert.False(t, res.StreakDays[3].IsLoggedIn)
}

func TestCalculateTodayLogged(t *testing.T) {
	res := Calculate(days(-3, -2, -1, 0), thursday, 7)

	assert.Equal(t, 4, res.CurrentStreak)
	assert.Equal(t, 4, res.CurrentDayInCycle)
	assert.True(t, res.StreakDays[3].IsLoggedIn)
	assert.True(t, res.TodayLoggedIn)
}

func TestCalculateBrokenStreakKeepsHistory(t *testing.T) {
	// Пропуск позавчера: засчитывается только вчера и сегодня
	res := Calculate(days(-10, -9, -8, -7, -1, 0), thursday, 7)

	assert.Equal(t, 2, res.CurrentStreak)
	assert.Equal(t, 2, res.CurrentDayInCycle)
	assert.Equal(t, 4, res.LongestStreak)
	assert.Equal(t, 6, res.TotalLogins)
}

func TestCalculateGoalDay(t *testing.T) {
	res := Calculate(days(-6, -5, -4, -3, -2, -1, 0), thursday, 7)

	assert.Equal(t, 7, res.CurrentStreak)
	assert.Equal(t, 7, res.CurrentDayInCycle)
	assert.Equal(t, "2024-05-03", res.CycleStart)
	assert.True(t, res.StreakDays[6].IsToday)
	assert.True(t, res.RewardEligible)
}

func TestCalculateSecondCycleStarts(t *testing.T) {
	res := Calculate(days(-7, -6, -5, -4, -3, -2, -1, 0), thursday, 7)

	assert.Equal(t, 8, res.CurrentStreak)
	assert.Equal(t, 1, res.CurrentDayInCycle)
	assert.Equal(t, "2024-05-09", res.CycleStart)
	assert.False(t, res.RewardEligible)
}

func TestCalculateDuplicatesAndOrder(t *testing.T) {
	dates := []time.Time{day(0), day(-1), day(-1).Add(5 * time.Hour), day(-2)}
	res := Calculate(dates, thursday, 7)

	assert.Equal(t, 3, res.CurrentStreak)
	assert.Equal(t, 3, res.TotalLogins)
}

func TestCalculateCustomGoal(t *testing.T) {
	res := Calculate(days(-2, -1, 0), thursday, 3)

	assert.True(t, res.StreakDays[2].GrantsFreeBot)
	assert.False(t, res.StreakDays[6].GrantsFreeBot)
	assert.True(t, res.RewardEligible)
}

func TestCalculateWindowInvariants(t *testing.T) {
	histories := [][]time.Time{
		nil,
		days(0),
		days(-1),
		days(-5, -4, -3, -2, -1),
		days(-13, -12, -11, -10, -9, -8, -7, -6, -5, -4, -3, -2, -1, 0),
	}
	for _, h := range histories {
		res := Calculate(h, thursday, 7)
		require.Len(t, res.StreakDays, CycleDays)

		todayCount := 0
		seenToday := false
		for _, d := range res.StreakDays {
			if d.IsToday {
				todayCount++
				seenToday = true
				continue
			}
			if seenToday {
				assert.True(t, d.IsFuture)
				assert.Nil(t, d.Date)
			} else {
				assert.NotNil(t, d.Date)
			}
		}
		assert.Equal(t, 1, todayCount)
		assert.Equal(t, res.CurrentDayInCycle, indexOfToday(res.StreakDays)+1)
	}
}

func indexOfToday(ds []Day) int {
	for i, d := range ds {
		if d.IsToday {
			return i
		}
	}
	return -1
}

func TestGoalReached(t *testing.T) {
	tests := []struct {
		streak, goal int
		want         bool
	}{
		{0, 7, false},
		{6, 7, false},
		{7, 7, true},
		{8, 7, false},
		{14, 7, true},
		{3, 3, true},
		{10, 3, true},
		{7, 0, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GoalReached(tt.streak, tt.goal), "streak=%d goal=%d", tt.streak, tt.goal)
	}
}

func TestGoalReachedDefaultIsMultipleOfSeven(t *testing.T) {
	for streak := 0; streak <= 50; streak++ {
		assert.Equal(t, streak > 0 && streak%7 == 0, GoalReached(streak, 7), "streak=%d", streak)
	}
}
