package models

import "time"

// Alert event types
const (
	AlertEventTypeInactivity = "Inactivity"  // elapsed time crossed the threshold
	AlertEventTypeManual     = "ManualAlert" // manual override raised critical
)

// AlertEvent row of survival_alert_events
type AlertEvent struct {
	EventID       string     `json:"event_id" db:"event_id"`
	FamilyID      string     `json:"family_id" db:"family_id"`
	EventType     string     `json:"event_type" db:"event_type"`
	ElderlyName   string     `json:"elderly_name" db:"elderly_name"`
	Message       string     `json:"message" db:"message"`
	PreviousLevel *string    `json:"previous_level,omitempty" db:"previous_level"`
	StatusData    string     `json:"status_data" db:"status_data"` // JSONB
	TriggeredAt   time.Time  `json:"triggered_at" db:"triggered_at"`
	ClearedAt     *time.Time `json:"cleared_at,omitempty" db:"cleared_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
