package evaluator

import (
	"fmt"
	"time"

	"wisefido-survival/internal/models"
)

// IsInSleepWindow reports whether now falls inside the do-not-disturb window.
// Absent, disabled or malformed schedules return false so alerting is never
// suppressed by bad configuration.
func IsInSleepWindow(schedule *models.SleepSchedule, now time.Time) bool {
	if schedule == nil || !schedule.Enabled || !validSchedule(schedule) {
		return false
	}
	if !hasWeekday(schedule.ActiveWeekdays, isoWeekday(now)) {
		return false
	}

	current := now.Hour()*60 + now.Minute()
	start := schedule.StartHour*60 + schedule.StartMinute
	end := schedule.EndHour*60 + schedule.EndMinute

	// spans midnight, e.g. 22:00 - 06:00
	if start > end {
		return current >= start || current <= end
	}
	return start <= current && current <= end
}

// SleepWindowLabel renders the window as "HH:MM - HH:MM"
func SleepWindowLabel(schedule *models.SleepSchedule) string {
	if schedule == nil || !validSchedule(schedule) {
		return ""
	}
	return fmt.Sprintf("%02d:%02d - %02d:%02d",
		schedule.StartHour, schedule.StartMinute,
		schedule.EndHour, schedule.EndMinute,
	)
}

func validSchedule(s *models.SleepSchedule) bool {
	return validHour(s.StartHour) && validMinute(s.StartMinute) &&
		validHour(s.EndHour) && validMinute(s.EndMinute)
}

func validHour(h int) bool   { return h >= 0 && h <= 23 }
func validMinute(m int) bool { return m >= 0 && m <= 59 }

// isoWeekday 1=Monday .. 7=Sunday
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func hasWeekday(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
