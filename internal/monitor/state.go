package monitor

import (
	"fmt"
	"time"

	"wisefido-survival/internal/models"
)

// State lifecycle of a Monitor
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MessageLoadFailed the only failure text shown to users
const MessageLoadFailed = "안부 상태를 불러올 수 없습니다. 네트워크를 확인한 후 다시 시도해 주세요."

// View what the UI renders for one family
type View struct {
	FamilyID          string               `json:"family_id"`
	State             State                `json:"state"`
	Status            *models.SafetyStatus `json:"status,omitempty"`
	ElderlyName       string               `json:"elderly_name,omitempty"`
	LastPhoneActivity *time.Time           `json:"last_phone_activity,omitempty"`
	BatteryLevel      *int                 `json:"battery_level,omitempty"`
	EvaluatedAt       time.Time            `json:"evaluated_at,omitempty"`
	Error             string               `json:"error,omitempty"`
}
