package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-survival/internal/models"

	"go.uber.org/zap"
)

// AlertEventsRepository survival_alert_events table, see AlertEventsSchema
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository creates the repository
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlertEvent inserts one critical transition
func (r *AlertEventsRepository) CreateAlertEvent(ctx context.Context, familyID string, event *models.AlertEvent) error {
	if familyID == "" {
		return fmt.Errorf("family_id is required")
	}
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.FamilyID != familyID {
		return fmt.Errorf("event.family_id must match family_id parameter")
	}
	if event.StatusData == "" {
		event.StatusData = "{}"
	}

	query := `
		INSERT INTO survival_alert_events (
			event_id,
			family_id,
			event_type,
			elderly_name,
			message,
			previous_level,
			status_data,
			triggered_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		event.EventID,
		event.FamilyID,
		event.EventType,
		event.ElderlyName,
		event.Message,
		event.PreviousLevel,
		event.StatusData,
		event.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert event: %w", err)
	}

	r.logger.Debug("Alert event created",
		zap.String("event_id", event.EventID),
		zap.String("family_id", familyID),
		zap.String("event_type", event.EventType),
	)
	return nil
}

// ListRecentAlertEvents newest first, at most limit rows (default 20, max 100)
func (r *AlertEventsRepository) ListRecentAlertEvents(ctx context.Context, familyID string, limit int) ([]*models.AlertEvent, error) {
	if familyID == "" {
		return nil, fmt.Errorf("family_id is required")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT
			event_id,
			family_id,
			event_type,
			elderly_name,
			message,
			previous_level,
			status_data,
			triggered_at,
			cleared_at,
			created_at
		FROM survival_alert_events
		WHERE family_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, familyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert events: %w", err)
	}
	defer rows.Close()

	var events []*models.AlertEvent
	for rows.Next() {
		var event models.AlertEvent
		var previous sql.NullString
		var clearedAt sql.NullTime
		var statusData []byte

		if err := rows.Scan(
			&event.EventID,
			&event.FamilyID,
			&event.EventType,
			&event.ElderlyName,
			&event.Message,
			&previous,
			&statusData,
			&event.TriggeredAt,
			&clearedAt,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}

		if previous.Valid {
			event.PreviousLevel = &previous.String
		}
		if clearedAt.Valid {
			event.ClearedAt = &clearedAt.Time
		}
		event.StatusData = string(statusData)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert events: %w", err)
	}

	return events, nil
}

// MarkAlertEventsCleared stamps cleared_at on every open event of the family
func (r *AlertEventsRepository) MarkAlertEventsCleared(ctx context.Context, familyID string, clearedAt time.Time) (int64, error) {
	if familyID == "" {
		return 0, fmt.Errorf("family_id is required")
	}

	query := `
		UPDATE survival_alert_events
		SET cleared_at = $2
		WHERE family_id = $1
		  AND cleared_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, familyID, clearedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to clear alert events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
