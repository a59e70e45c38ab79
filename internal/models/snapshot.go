package models

import "time"

// Document keys of the per-family survival document
const (
	KeyLastPhoneActivity     = "lastPhoneActivity"
	KeyElderlyName           = "elderlyName"
	KeyAlertThresholdHours   = "alertThresholdHours"
	KeySurvivalSignalEnabled = "survivalSignalEnabled"
	KeySleepSchedule         = "sleepSchedule"
	KeyManualAlertActive     = "manualAlertActive"
	KeyManualAlertMessage    = "manualAlertMessage"
	KeyBatteryLevel          = "batteryLevel"
	KeyAlertClearedAt        = "alertClearedAt"

	KeySleepEnabled     = "enabled"
	KeySleepStartHour   = "startHour"
	KeySleepStartMinute = "startMinute"
	KeySleepEndHour     = "endHour"
	KeySleepEndMinute   = "endMinute"
	KeySleepWeekdays    = "activeWeekdays"
)

// Alert threshold bounds in hours
const (
	DefaultAlertThresholdHours = 12
	MinAlertThresholdHours     = 1
	MaxAlertThresholdHours     = 72
)

// ClampAlertThreshold maps 0 (unset) to the default and clamps the rest into 1..72
func ClampAlertThreshold(hours int) int {
	switch {
	case hours == 0:
		return DefaultAlertThresholdHours
	case hours < MinAlertThresholdHours:
		return MinAlertThresholdHours
	case hours > MaxAlertThresholdHours:
		return MaxAlertThresholdHours
	}
	return hours
}

// SleepSchedule do-not-disturb window; weekdays use 1=Monday..7=Sunday
type SleepSchedule struct {
	Enabled        bool  `json:"enabled"`
	StartHour      int   `json:"start_hour"`
	StartMinute    int   `json:"start_minute"`
	EndHour        int   `json:"end_hour"`
	EndMinute      int   `json:"end_minute"`
	ActiveWeekdays []int `json:"active_weekdays"`
}

// ActivitySnapshot typed view of one family document, rebuilt on every update
type ActivitySnapshot struct {
	FamilyID              string         `json:"family_id"`
	LastPhoneActivity     *time.Time     `json:"last_phone_activity,omitempty"`
	ElderlyName           string         `json:"elderly_name"`
	AlertThresholdHours   int            `json:"alert_threshold_hours"`
	SurvivalSignalEnabled bool           `json:"survival_signal_enabled"`
	SleepSchedule         *SleepSchedule `json:"sleep_schedule,omitempty"`
	ManualAlertActive     bool           `json:"manual_alert_active"`
	ManualAlertMessage    *string        `json:"manual_alert_message,omitempty"`
	BatteryLevel          *int           `json:"battery_level,omitempty"`
	AlertClearedAt        *time.Time     `json:"alert_cleared_at,omitempty"`
}

// Heartbeat one phone-activity signal
type Heartbeat struct {
	At           time.Time
	BatteryLevel *int
	Source       string
}
