package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"wisefido-survival/internal/clock"
	"wisefido-survival/internal/common/database"
	mqttcommon "wisefido-survival/internal/common/mqtt"
	rediscommon "wisefido-survival/internal/common/redis"
	"wisefido-survival/internal/config"
	"wisefido-survival/internal/consumer"
	"wisefido-survival/internal/models"
	"wisefido-survival/internal/monitor"
	"wisefido-survival/internal/notifier"
	"wisefido-survival/internal/repository"
	"wisefido-survival/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	ErrUnknownFamily    = errors.New("family is not monitored")
	ErrEventLogDisabled = errors.New("alert event log is disabled")
)

// SurvivalService operations exposed to the HTTP layer
type SurvivalService interface {
	Families() []string
	Status(familyID string) (monitor.View, error)
	ClearAlert(ctx context.Context, familyID string) error
	Retry(familyID string) error
	RecentAlerts(ctx context.Context, familyID string, limit int) ([]*models.AlertEvent, error)
	Health(ctx context.Context) error
}

// Deps externally built connections; nil DB or Subscriber disables that part
type Deps struct {
	Redis      *redis.Client
	DB         *sql.DB
	Subscriber consumer.Subscriber
	Clock      clock.Clock
}

// Survival runs one status monitor per configured family
type Survival struct {
	config *config.Config
	logger *zap.Logger
	clock  clock.Clock

	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client

	store    *store.RedisDocumentStore
	events   *repository.AlertEventsRepository
	monitors map[string]*monitor.Monitor
	consumer *consumer.HeartbeatConsumer

	consumerCancel context.CancelFunc
	consumerDone   chan struct{}
}

// NewSurvivalService connects Redis, and Postgres/MQTT when enabled
func NewSurvivalService(cfg *config.Config, logger *zap.Logger) (*Survival, error) {
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	deps := Deps{Redis: redisClient}

	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			rediscommon.Close(redisClient)
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		deps.DB = db
	}

	var mqttClient *mqttcommon.Client
	if cfg.MQTTEnabled {
		c, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			rediscommon.Close(redisClient)
			if deps.DB != nil {
				database.Close(deps.DB)
			}
			return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
		}
		mqttClient = c
		deps.Subscriber = c
	}

	s := NewSurvival(cfg, deps, logger)
	s.mqttClient = mqttClient
	return s, nil
}

// NewSurvival wires components over existing connections
func NewSurvival(cfg *config.Config, deps Deps, logger *zap.Logger) *Survival {
	ds := store.NewRedisDocumentStore(deps.Redis, cfg.Survival.Document.KeyPrefix, cfg.Survival.Document.ChangedSuffix, logger)

	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}

	s := &Survival{
		config:   cfg,
		clock:    clk,
		logger:   logger,
		db:       deps.DB,
		redis:    deps.Redis,
		store:    ds,
		monitors: make(map[string]*monitor.Monitor),
	}

	// each channel gets its own NotifyTimeout; the local event log and stream
	// go before the remote push gateway
	perNotifier := cfg.Survival.NotifyTimeout
	var notifiers notifier.Multi
	if deps.DB != nil {
		s.events = repository.NewAlertEventsRepository(deps.DB, logger)
		notifiers = append(notifiers, notifier.WithTimeout(notifier.NewEventLogNotifier(s.events), perNotifier))
	}
	notifiers = append(notifiers, notifier.WithTimeout(
		notifier.NewStreamNotifier(deps.Redis, cfg.Survival.AlertStream, logger), perNotifier))
	if cfg.Survival.WebhookURL != "" {
		notifiers = append(notifiers, notifier.WithTimeout(
			notifier.NewWebhookNotifier(cfg.Survival.WebhookURL, perNotifier, logger), perNotifier))
	}

	opts := monitor.Options{
		Clock:    s.clock,
		Interval: cfg.Survival.PollInterval,
		Location: cfg.Location(),
		// whole fan-out budget
		NotifyTimeout: perNotifier * time.Duration(len(notifiers)),
	}
	for _, id := range cfg.Survival.FamilyIDs {
		s.monitors[id] = monitor.New(ds, notifiers, opts, logger.With(zap.String("family_id", id)))
	}

	if deps.Subscriber != nil {
		s.consumer = consumer.NewHeartbeatConsumer(cfg.Survival.HeartbeatTopic, cfg.MQTT.QoS, deps.Subscriber, ds, logger)
	}

	return s
}

// Start starts every monitor and the heartbeat consumer
func (s *Survival) Start(ctx context.Context) error {
	s.logger.Info("Starting survival service components",
		zap.Int("families", len(s.monitors)),
		zap.Bool("event_log", s.events != nil),
		zap.Bool("heartbeat_consumer", s.consumer != nil),
	)

	for _, id := range s.Families() {
		if err := s.monitors[id].Start(ctx, id); err != nil {
			return fmt.Errorf("failed to start monitor for %s: %w", id, err)
		}
	}

	if s.consumer != nil {
		cctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		s.consumerCancel = cancel
		s.consumerDone = done
		go func() {
			defer close(done)
			if err := s.consumer.Start(cctx); err != nil {
				s.logger.Error("Heartbeat consumer exited", zap.Error(err))
			}
		}()
	}

	s.logger.Info("Survival service started successfully")
	return nil
}

// Stop stops the consumer and monitors, then closes connections
func (s *Survival) Stop(ctx context.Context) error {
	s.logger.Info("Stopping survival service")

	if s.consumerCancel != nil {
		s.consumerCancel()
		<-s.consumerDone
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	for _, m := range s.monitors {
		m.Stop()
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}
	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Survival service stopped")
	return nil
}

// Families monitored family IDs, sorted
func (s *Survival) Families() []string {
	ids := make([]string, 0, len(s.monitors))
	for id := range s.monitors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Survival) Status(familyID string) (monitor.View, error) {
	m, ok := s.monitors[familyID]
	if !ok {
		return monitor.View{}, ErrUnknownFamily
	}
	return m.Status(), nil
}

// ClearAlert clears the manual alert and stamps open log rows as cleared
func (s *Survival) ClearAlert(ctx context.Context, familyID string) error {
	m, ok := s.monitors[familyID]
	if !ok {
		return ErrUnknownFamily
	}
	if err := m.ClearCriticalAlert(ctx, familyID); err != nil {
		return err
	}

	if s.events != nil {
		n, err := s.events.MarkAlertEventsCleared(ctx, familyID, s.clock.Now())
		if err != nil {
			s.logger.Warn("Failed to mark alert events cleared",
				zap.String("family_id", familyID),
				zap.Error(err),
			)
			return nil
		}
		s.logger.Debug("Marked alert events cleared",
			zap.String("family_id", familyID),
			zap.Int64("rows", n),
		)
	}
	return nil
}

func (s *Survival) Retry(familyID string) error {
	m, ok := s.monitors[familyID]
	if !ok {
		return ErrUnknownFamily
	}
	return m.Retry()
}

func (s *Survival) RecentAlerts(ctx context.Context, familyID string, limit int) ([]*models.AlertEvent, error) {
	if _, ok := s.monitors[familyID]; !ok {
		return nil, ErrUnknownFamily
	}
	if s.events == nil {
		return nil, ErrEventLogDisabled
	}
	return s.events.ListRecentAlertEvents(ctx, familyID, limit)
}

// Health pings Redis and, when enabled, Postgres and the MQTT broker
func (s *Survival) Health(ctx context.Context) error {
	if err := rediscommon.Ping(ctx, s.redis); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.mqttClient != nil && !s.mqttClient.IsConnected() {
		return errors.New("mqtt: not connected")
	}
	return nil
}
