package evaluator

import (
	"testing"
	"time"

	"wisefido-survival/internal/models"

	"github.com/stretchr/testify/assert"
)

var allDays = []int{1, 2, 3, 4, 5, 6, 7}

// 2026-10-14 is a Wednesday
func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 14, hour, minute, 0, 0, time.UTC)
}

func TestIsInSleepWindow_SpansMidnight(t *testing.T) {
	s := &models.SleepSchedule{Enabled: true, StartHour: 22, EndHour: 6, ActiveWeekdays: allDays}

	assert.True(t, IsInSleepWindow(s, at(23, 30)))
	assert.True(t, IsInSleepWindow(s, at(5, 30)))
	assert.True(t, IsInSleepWindow(s, at(22, 0)))
	assert.True(t, IsInSleepWindow(s, at(6, 0)))
	assert.False(t, IsInSleepWindow(s, at(6, 1)))
	assert.False(t, IsInSleepWindow(s, at(12, 0)))
	assert.False(t, IsInSleepWindow(s, at(21, 59)))
}

func TestIsInSleepWindow_SameDay(t *testing.T) {
	s := &models.SleepSchedule{Enabled: true, StartHour: 14, EndHour: 16, ActiveWeekdays: allDays}

	assert.True(t, IsInSleepWindow(s, at(14, 0)))
	assert.True(t, IsInSleepWindow(s, at(15, 30)))
	assert.True(t, IsInSleepWindow(s, at(16, 0)))
	assert.False(t, IsInSleepWindow(s, at(13, 59)))
	assert.False(t, IsInSleepWindow(s, at(16, 1)))
}

func TestIsInSleepWindow_DisabledOrAbsent(t *testing.T) {
	assert.False(t, IsInSleepWindow(nil, at(23, 0)))

	s := &models.SleepSchedule{Enabled: false, StartHour: 22, EndHour: 6, ActiveWeekdays: allDays}
	assert.False(t, IsInSleepWindow(s, at(23, 0)))
}

func TestIsInSleepWindow_Weekdays(t *testing.T) {
	// Wednesday = 3
	s := &models.SleepSchedule{Enabled: true, StartHour: 0, EndHour: 23, EndMinute: 59, ActiveWeekdays: []int{1, 2}}
	assert.False(t, IsInSleepWindow(s, at(12, 0)))

	s.ActiveWeekdays = []int{3}
	assert.True(t, IsInSleepWindow(s, at(12, 0)))

	sunday := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s.ActiveWeekdays = []int{7}
	assert.True(t, IsInSleepWindow(s, sunday))

	s.ActiveWeekdays = nil
	assert.False(t, IsInSleepWindow(s, at(12, 0)))
}

func TestIsInSleepWindow_MalformedFailsOpen(t *testing.T) {
	cases := []*models.SleepSchedule{
		{Enabled: true, StartHour: 25, EndHour: 6, ActiveWeekdays: allDays},
		{Enabled: true, StartHour: 22, EndHour: -1, ActiveWeekdays: allDays},
		{Enabled: true, StartHour: 22, StartMinute: 60, EndHour: 6, ActiveWeekdays: allDays},
		{Enabled: true, StartHour: 22, EndHour: 6, EndMinute: -5, ActiveWeekdays: allDays},
	}
	for _, s := range cases {
		assert.False(t, IsInSleepWindow(s, at(23, 30)))
		assert.Equal(t, "", SleepWindowLabel(s))
	}
}

func TestSleepWindowLabel(t *testing.T) {
	s := &models.SleepSchedule{Enabled: true, StartHour: 22, StartMinute: 30, EndHour: 6, EndMinute: 5}
	assert.Equal(t, "22:30 - 06:05", SleepWindowLabel(s))
	assert.Equal(t, "", SleepWindowLabel(nil))
}
