package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// AlertEventsSchema idempotent DDL for survival_alert_events
const AlertEventsSchema = `
CREATE TABLE IF NOT EXISTS survival_alert_events (
    event_id       UUID PRIMARY KEY,
    family_id      TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    elderly_name   TEXT NOT NULL DEFAULT '',
    message        TEXT NOT NULL,
    previous_level TEXT,
    status_data    JSONB NOT NULL DEFAULT '{}',
    triggered_at   TIMESTAMPTZ NOT NULL,
    cleared_at     TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_survival_alert_events_family_triggered
    ON survival_alert_events (family_id, triggered_at DESC);

CREATE INDEX IF NOT EXISTS idx_survival_alert_events_open
    ON survival_alert_events (family_id)
    WHERE cleared_at IS NULL;
`

// EnsureSchema creates the alert event table and indexes when missing
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, AlertEventsSchema); err != nil {
		return fmt.Errorf("failed to apply alert events schema: %w", err)
	}
	return nil
}
