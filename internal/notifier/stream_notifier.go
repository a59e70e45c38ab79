package notifier

import (
	"context"
	"fmt"

	rediscommon "wisefido-survival/internal/common/redis"
	"wisefido-survival/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamNotifier publishes transitions to a Redis stream for the push pipeline
type StreamNotifier struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewStreamNotifier(client *redis.Client, stream string, logger *zap.Logger) *StreamNotifier {
	return &StreamNotifier{client: client, stream: stream, logger: logger}
}

func (n *StreamNotifier) NotifyCritical(ctx context.Context, event models.CriticalTransition) error {
	id, err := rediscommon.PublishToStream(ctx, n.client, n.stream, map[string]interface{}{
		"event_id":     event.EventID,
		"family_id":    event.FamilyID,
		"elderly_name": event.ElderlyName,
		"message":      event.Message,
		"level":        event.Status.Level.String(),
		"manual_alert": event.Status.ManualAlert,
		"occurred_at":  event.OccurredAt.Unix(),
		"status":       event.Status,
	})
	if err != nil {
		return fmt.Errorf("failed to publish critical transition: %w", err)
	}

	n.logger.Info("Published critical transition",
		zap.String("family_id", event.FamilyID),
		zap.String("event_id", event.EventID),
		zap.String("stream", n.stream),
		zap.String("stream_id", id),
	)
	return nil
}
