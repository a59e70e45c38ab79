package models

import (
	"fmt"
	"time"
)

// SafetyLevel tri-state classification of inactivity
type SafetyLevel int

const (
	LevelSafe SafetyLevel = iota
	LevelWarning
	LevelCritical
)

func (l SafetyLevel) String() string {
	switch l {
	case LevelSafe:
		return "safe"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("SafetyLevel(%d)", int(l))
	}
}

// MarshalText encodes the level as its name
func (l SafetyLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name
func (l *SafetyLevel) UnmarshalText(text []byte) error {
	switch string(text) {
	case "safe":
		*l = LevelSafe
	case "warning":
		*l = LevelWarning
	case "critical":
		*l = LevelCritical
	default:
		return fmt.Errorf("unknown safety level: %q", string(text))
	}
	return nil
}

// SafetyStatus derived value, recomputed on every evaluation
type SafetyStatus struct {
	Level                 SafetyLevel   `json:"level"`
	Message               string        `json:"message"`
	TimeSinceLastActivity time.Duration `json:"time_since_last_activity"`
	// TimeUntilNextLevel only meaningful for LevelWarning
	TimeUntilNextLevel time.Duration `json:"time_until_next_level"`
	AlertHours         int           `json:"alert_hours"`

	InSleepMode bool `json:"in_sleep_mode"`
	// AlertsPaused escalation was suppressed by the sleep window
	AlertsPaused      bool   `json:"alerts_paused"`
	SleepWindow       string `json:"sleep_window,omitempty"`
	MonitoringEnabled bool   `json:"monitoring_enabled"`
	ManualAlert       bool   `json:"manual_alert"`
	HasActivity       bool   `json:"has_activity"`
}

// CriticalTransition emitted once per edge into LevelCritical
type CriticalTransition struct {
	EventID     string `json:"event_id"`
	FamilyID    string `json:"family_id"`
	ElderlyName string `json:"elderly_name"`
	Message     string `json:"message"`
	// PreviousLevel nil when the monitor had no prior status
	PreviousLevel *SafetyLevel `json:"previous_level,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
	Status        SafetyStatus `json:"status"`
}
