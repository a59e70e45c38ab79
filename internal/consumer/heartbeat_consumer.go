package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqttcommon "wisefido-survival/internal/common/mqtt"
	"wisefido-survival/internal/metrics"
	"wisefido-survival/internal/models"
	"wisefido-survival/internal/store"

	"go.uber.org/zap"
)

// Subscriber MQTT subscription primitives
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// HeartbeatPayload message published by the phone app
type HeartbeatPayload struct {
	// Timestamp unix milliseconds; zero means receive time
	Timestamp    int64  `json:"timestamp"`
	BatteryLevel *int   `json:"battery_level,omitempty"`
	Source       string `json:"source,omitempty"`
}

var ErrInvalidTopic = errors.New("invalid heartbeat topic")

// DefaultRecordTimeout bounds one store write from the MQTT callback
const DefaultRecordTimeout = 5 * time.Second

// HeartbeatConsumer records phone heartbeats as family activity
type HeartbeatConsumer struct {
	topic      string
	qos        byte
	subscriber Subscriber
	recorder   store.ActivityRecorder
	logger     *zap.Logger
	now        func() time.Time

	recordTimeout time.Duration
}

// NewHeartbeatConsumer topic must contain one "+" segment standing for the family ID
func NewHeartbeatConsumer(topic string, qos byte, subscriber Subscriber, recorder store.ActivityRecorder, logger *zap.Logger) *HeartbeatConsumer {
	return &HeartbeatConsumer{
		topic:      topic,
		qos:        qos,
		subscriber: subscriber,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,

		recordTimeout: DefaultRecordTimeout,
	}
}

// Start subscribes and blocks until ctx is done
func (c *HeartbeatConsumer) Start(ctx context.Context) error {
	if familySegment(c.topic) < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, c.topic)
	}
	if err := c.subscriber.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to heartbeat topic: %w", err)
	}

	c.logger.Info("Heartbeat consumer started", zap.String("topic", c.topic))

	<-ctx.Done()
	return nil
}

// Stop unsubscribes
func (c *HeartbeatConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("Heartbeat consumer stopped")
	return nil
}

func (c *HeartbeatConsumer) handleMessage(topic string, payload []byte) error {
	familyID, err := c.familyID(topic)
	if err != nil {
		metrics.IncHeartbeat(metrics.ResultError)
		c.logger.Warn("Rejected heartbeat", zap.String("topic", topic), zap.Error(err))
		return err
	}

	var msg HeartbeatPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		metrics.IncHeartbeat(metrics.ResultError)
		c.logger.Error("Failed to unmarshal heartbeat",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal heartbeat: %w", err)
	}

	hb := models.Heartbeat{
		At:     c.activityTime(msg.Timestamp),
		Source: msg.Source,
	}
	if msg.BatteryLevel != nil && *msg.BatteryLevel >= 0 && *msg.BatteryLevel <= 100 {
		hb.BatteryLevel = msg.BatteryLevel
	}

	// runs on the paho callback goroutine, so a stalled store must not hold it
	ctx, cancel := context.WithTimeout(context.Background(), c.recordTimeout)
	defer cancel()

	if err := c.recorder.RecordActivity(ctx, familyID, hb); err != nil {
		metrics.IncHeartbeat(metrics.ResultError)
		c.logger.Error("Failed to record activity",
			zap.String("family_id", familyID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to record activity: %w", err)
	}

	metrics.IncHeartbeat(metrics.ResultSuccess)
	c.logger.Debug("Recorded heartbeat",
		zap.String("family_id", familyID),
		zap.Time("at", hb.At),
		zap.String("source", hb.Source),
	)
	return nil
}

// activityTime future timestamps are clamped to receive time
func (c *HeartbeatConsumer) activityTime(ms int64) time.Time {
	now := c.now()
	if ms <= 0 {
		return now
	}
	at := time.UnixMilli(ms)
	if at.After(now) {
		return now
	}
	return at
}

// familyID topic format: survival/{family_id}/heartbeat
func (c *HeartbeatConsumer) familyID(topic string) (string, error) {
	pattern := strings.Split(c.topic, "/")
	parts := strings.Split(topic, "/")
	idx := familySegment(c.topic)
	if idx < 0 || len(parts) != len(pattern) {
		return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	for i, p := range pattern {
		if i != idx && p != parts[i] {
			return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
		}
	}
	if parts[idx] == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return parts[idx], nil
}

func familySegment(pattern string) int {
	for i, p := range strings.Split(pattern, "/") {
		if p == "+" {
			return i
		}
	}
	return -1
}
