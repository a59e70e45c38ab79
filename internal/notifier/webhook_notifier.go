package notifier

import (
	"context"
	"fmt"
	"time"

	"wisefido-survival/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookPayload body posted to the push gateway
type WebhookPayload struct {
	EventID     string    `json:"event_id"`
	FamilyID    string    `json:"family_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	OccurredAt  time.Time `json:"occurred_at"`
	ManualAlert bool      `json:"manual_alert"`
}

// WebhookNotifier hands transitions to an HTTP push gateway
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// webhookAttempts one call plus retries
const webhookAttempts = 3

// NewWebhookNotifier posts to url with retries; budget bounds all attempts together
func NewWebhookNotifier(url string, budget time.Duration, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(budget / (webhookAttempts + 1)).
		SetRetryCount(webhookAttempts - 1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{httpClient: client, url: url, logger: logger}
}

func (n *WebhookNotifier) NotifyCritical(ctx context.Context, event models.CriticalTransition) error {
	name := event.ElderlyName
	if name == "" {
		name = "어르신"
	}
	payload := WebhookPayload{
		EventID:     event.EventID,
		FamilyID:    event.FamilyID,
		Title:       fmt.Sprintf("%s님 안부 확인이 필요합니다", name),
		Body:        event.Message,
		OccurredAt:  event.OccurredAt,
		ManualAlert: event.Status.ManualAlert,
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("failed to call push gateway: %w", err)
	}
	if resp.IsError() {
		n.logger.Error("Push gateway returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("family_id", event.FamilyID),
		)
		return fmt.Errorf("push gateway error: status %d", resp.StatusCode())
	}

	n.logger.Info("Push gateway accepted critical transition",
		zap.String("family_id", event.FamilyID),
		zap.String("event_id", event.EventID),
	)
	return nil
}
