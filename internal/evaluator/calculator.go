package evaluator

import (
	"fmt"
	"time"

	"wisefido-survival/internal/models"
)

// Status messages shown to the family
const (
	MessageManualAlert      = "장시간 활동이 감지되지 않았습니다"
	MessageMonitoringOff    = "안부 알림이 꺼져 있습니다"
	MessageAwaitingActivity = "아직 활동 기록이 없습니다"
	MessageJustActive       = "방금 활동이 확인되었습니다"

	defaultElderlyName = "어르신"
)

// warningLeadMinutes warning band width before the critical threshold
const warningLeadMinutes = 60

// Calculate derives the safety status for snapshot at now.
// It is pure: identical inputs always produce identical output.
//
// Priority: manual alert, monitoring disabled, no activity yet, then elapsed
// time against the thresholds with sleep-window suppression.
func Calculate(snapshot models.ActivitySnapshot, now time.Time) models.SafetyStatus {
	alertHours := models.ClampAlertThreshold(snapshot.AlertThresholdHours)

	elapsed := elapsedSince(snapshot.LastPhoneActivity, now)
	status := models.SafetyStatus{
		Level:                 models.LevelSafe,
		TimeSinceLastActivity: elapsed,
		AlertHours:            alertHours,
		InSleepMode:           IsInSleepWindow(snapshot.SleepSchedule, now),
		MonitoringEnabled:     snapshot.SurvivalSignalEnabled,
		ManualAlert:           snapshot.ManualAlertActive,
		HasActivity:           snapshot.LastPhoneActivity != nil,
	}
	if status.InSleepMode {
		status.SleepWindow = SleepWindowLabel(snapshot.SleepSchedule)
	}

	// manual override defeats every other rule, the sleep window included
	if snapshot.ManualAlertActive {
		status.Level = models.LevelCritical
		status.Message = MessageManualAlert
		if snapshot.ManualAlertMessage != nil {
			status.Message = *snapshot.ManualAlertMessage
		}
		return status
	}

	if !snapshot.SurvivalSignalEnabled {
		status.Message = MessageMonitoringOff
		return status
	}

	if snapshot.LastPhoneActivity == nil {
		status.Message = MessageAwaitingActivity
		return status
	}

	elapsedMinutes := int(elapsed / time.Minute)
	criticalMinutes := alertHours * 60
	warningMinutes := criticalMinutes - warningLeadMinutes
	if warningMinutes < 0 {
		warningMinutes = 0
	}

	level := models.LevelSafe
	switch {
	case elapsedMinutes >= criticalMinutes:
		level = models.LevelCritical
	case warningMinutes > 0 && elapsedMinutes >= warningMinutes:
		level = models.LevelWarning
	}

	if level != models.LevelSafe && status.InSleepMode {
		status.AlertsPaused = true
		status.Message = fmt.Sprintf("수면 시간입니다 (%s). 알림이 일시 중지되었습니다", status.SleepWindow)
		return status
	}

	status.Level = level
	switch level {
	case models.LevelCritical:
		status.Message = fmt.Sprintf("%s님의 활동이 %s 동안 확인되지 않았습니다",
			elderlyName(snapshot), FormatDuration(elapsed))
	case models.LevelWarning:
		status.TimeUntilNextLevel = time.Duration(criticalMinutes-elapsedMinutes) * time.Minute
		status.Message = fmt.Sprintf("%s 후 위험 알림이 발송됩니다", FormatDuration(status.TimeUntilNextLevel))
	default:
		if elapsedMinutes == 0 {
			status.Message = MessageJustActive
		} else {
			status.Message = fmt.Sprintf("마지막 활동: %s 전", FormatDuration(elapsed))
		}
	}
	return status
}

// elapsedSince whole minutes between last and now, zero when unknown or in the future
func elapsedSince(last *time.Time, now time.Time) time.Duration {
	if last == nil {
		return 0
	}
	d := now.Sub(*last)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Minute)
}

func elderlyName(snapshot models.ActivitySnapshot) string {
	if snapshot.ElderlyName != "" {
		return snapshot.ElderlyName
	}
	return defaultElderlyName
}
