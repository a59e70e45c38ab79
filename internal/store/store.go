// Package store holds the family-document persistence collaborator.
package store

import (
	"context"
	"errors"

	"wisefido-survival/internal/models"
)

var (
	// ErrDocumentNotFound family document does not exist
	ErrDocumentNotFound = errors.New("family document not found")
	// ErrStreamFailed change subscription broke
	ErrStreamFailed = errors.New("document stream failed")
	// ErrMalformedDocument stored document is not a JSON object
	ErrMalformedDocument = errors.New("malformed family document")
	// ErrFamilyIDRequired empty family identifier
	ErrFamilyIDRequired = errors.New("family_id is required")
)

// DocumentUpdate one push from a subscription: either a document or an error
type DocumentUpdate struct {
	Document map[string]interface{}
	Err      error
}

// Subscription live stream of document updates for one family
type Subscription interface {
	// Updates is closed after an error update or Close
	Updates() <-chan DocumentUpdate
	Close() error
}

// DocumentStore read/listen/write primitives used by the status monitor
type DocumentStore interface {
	Subscribe(ctx context.Context, familyID string) (Subscription, error)
	// ClearAlert sets manualAlertActive=false in one atomic update
	ClearAlert(ctx context.Context, familyID string) error
}

// ActivityRecorder records phone heartbeats into the family document
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, familyID string, hb models.Heartbeat) error
}
