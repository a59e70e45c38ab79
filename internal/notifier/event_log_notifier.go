package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"wisefido-survival/internal/models"
)

// AlertEventWriter persistence used by EventLogNotifier
type AlertEventWriter interface {
	CreateAlertEvent(ctx context.Context, familyID string, event *models.AlertEvent) error
}

// EventLogNotifier records every transition in the alert event log
type EventLogNotifier struct {
	repo AlertEventWriter
}

func NewEventLogNotifier(repo AlertEventWriter) *EventLogNotifier {
	return &EventLogNotifier{repo: repo}
}

func (n *EventLogNotifier) NotifyCritical(ctx context.Context, event models.CriticalTransition) error {
	statusJSON, err := json.Marshal(event.Status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	eventType := models.AlertEventTypeInactivity
	if event.Status.ManualAlert {
		eventType = models.AlertEventTypeManual
	}

	var previous *string
	if event.PreviousLevel != nil {
		p := event.PreviousLevel.String()
		previous = &p
	}

	return n.repo.CreateAlertEvent(ctx, event.FamilyID, &models.AlertEvent{
		EventID:       event.EventID,
		FamilyID:      event.FamilyID,
		EventType:     eventType,
		ElderlyName:   event.ElderlyName,
		Message:       event.Message,
		PreviousLevel: previous,
		StatusData:    string(statusJSON),
		TriggeredAt:   event.OccurredAt,
	})
}
