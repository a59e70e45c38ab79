// Package monitor keeps one family's safety status current and fires the
// critical notifier on each transition into critical.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-survival/internal/clock"
	"wisefido-survival/internal/evaluator"
	"wisefido-survival/internal/metrics"
	"wisefido-survival/internal/models"
	"wisefido-survival/internal/notifier"
	"wisefido-survival/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultInterval      = 60 * time.Second
	DefaultNotifyTimeout = 10 * time.Second
)

var (
	ErrFamilyIDRequired = store.ErrFamilyIDRequired
	ErrNotInErrorState  = errors.New("monitor is not in error state")
	ErrStreamClosed     = errors.New("document stream closed")
)

// Options optional tuning; zero values take defaults
type Options struct {
	Clock         clock.Clock
	Interval      time.Duration
	Location      *time.Location
	NotifyTimeout time.Duration
}

// Monitor status monitor for a single family
type Monitor struct {
	store         store.DocumentStore
	notifier      notifier.Notifier
	clock         clock.Clock
	interval      time.Duration
	location      *time.Location
	notifyTimeout time.Duration
	logger        *zap.Logger
	newEventID    func() string

	// lifecycle serializes Start/Stop/Retry
	lifecycle sync.Mutex
	parent    context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	mu          sync.RWMutex
	familyID    string
	state       State
	snapshot    *models.ActivitySnapshot
	status      *models.SafetyStatus
	evaluatedAt time.Time
	lastErr     error
	// lastLevel level of the latest evaluation; survives Retry so a stream
	// hiccup does not re-fire a transition that already fired
	lastLevel *models.SafetyLevel

	views *broadcaster
}

// New builds a monitor; it does nothing until Start
func New(ds store.DocumentStore, n notifier.Notifier, opts Options, logger *zap.Logger) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = DefaultNotifyTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		store:         ds,
		notifier:      n,
		clock:         opts.Clock,
		interval:      opts.Interval,
		location:      opts.Location,
		notifyTimeout: opts.NotifyTimeout,
		logger:        logger.With(zap.String("component", "status_monitor")),
		newEventID:    func() string { return uuid.New().String() },
		state:         StateUninitialized,
		views:         newBroadcaster(),
	}
}

// Start subscribes to the family document and begins periodic re-evaluation.
// Calling it again with the same family is a no-op while the loop is alive;
// another family resets all state.
func (m *Monitor) Start(ctx context.Context, familyID string) error {
	if familyID == "" {
		return ErrFamilyIDRequired
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	sameFamily := m.familyID == familyID
	failed := m.state == StateError
	m.mu.RUnlock()

	if m.done != nil {
		if sameFamily && !failed && !isClosed(m.done) {
			return nil
		}
		m.stopLocked()
	}

	if !sameFamily {
		m.mu.Lock()
		m.lastLevel = nil
		m.mu.Unlock()
	}

	m.parent = ctx
	m.startLocked(familyID)
	return nil
}

// Stop cancels the subscription and ticker. No notifier call happens after it returns.
func (m *Monitor) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.done == nil {
		return
	}
	m.stopLocked()

	m.mu.Lock()
	m.familyID = ""
	m.state = StateUninitialized
	m.snapshot = nil
	m.status = nil
	m.evaluatedAt = time.Time{}
	m.lastErr = nil
	m.lastLevel = nil
	view := m.viewLocked()
	m.mu.Unlock()

	m.views.publish(view)
}

// Retry re-subscribes after a stream failure. The last evaluated level is
// kept, so a family that stayed critical is not notified again.
func (m *Monitor) Retry() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	state, familyID := m.state, m.familyID
	m.mu.RUnlock()

	if state != StateError {
		return ErrNotInErrorState
	}
	m.stopLocked()
	m.startLocked(familyID)
	return nil
}

// ClearCriticalAlert asks the store to reset the manual alert flag.
// Local status changes only when the store pushes the updated document.
func (m *Monitor) ClearCriticalAlert(ctx context.Context, familyID string) error {
	if familyID == "" {
		return ErrFamilyIDRequired
	}
	if err := m.store.ClearAlert(ctx, familyID); err != nil {
		metrics.IncClearAlert(metrics.ResultError)
		m.logger.Error("Failed to clear alert",
			zap.String("family_id", familyID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to clear alert: %w", err)
	}
	metrics.IncClearAlert(metrics.ResultSuccess)
	m.logger.Info("Alert cleared", zap.String("family_id", familyID))
	return nil
}

// Status current view
func (m *Monitor) Status() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewLocked()
}

// Err last stream error, nil unless in error state
func (m *Monitor) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Watch returns a channel carrying the latest view. Slow readers skip
// intermediate views. The returned func unregisters and closes the channel.
func (m *Monitor) Watch() (<-chan View, func()) {
	return m.views.add(m.Status())
}

func (m *Monitor) startLocked(familyID string) {
	parent := m.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	m.mu.Lock()
	m.familyID = familyID
	m.state = StateLoading
	m.snapshot = nil
	m.status = nil
	m.evaluatedAt = time.Time{}
	m.lastErr = nil
	view := m.viewLocked()
	m.mu.Unlock()
	m.views.publish(view)

	m.logger.Info("Status monitor started",
		zap.String("family_id", familyID),
		zap.Duration("interval", m.interval),
	)
	go m.run(ctx, familyID, done)
}

func (m *Monitor) stopLocked() {
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
}

func (m *Monitor) run(ctx context.Context, familyID string, done chan struct{}) {
	defer close(done)

	sub, err := m.store.Subscribe(ctx, familyID)
	if err != nil {
		if ctx.Err() == nil {
			m.fail(familyID, err)
		}
		return
	}
	defer sub.Close()

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-sub.Updates():
			if ctx.Err() != nil {
				return
			}
			if !ok {
				m.fail(familyID, ErrStreamClosed)
				return
			}
			if upd.Err != nil {
				m.fail(familyID, upd.Err)
				return
			}
			snapshot := models.ParseSnapshot(familyID, upd.Document)
			m.evaluate(ctx, &snapshot)
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			m.evaluate(ctx, nil)
		}
	}
}

// evaluate recomputes the status from the latest snapshot
func (m *Monitor) evaluate(ctx context.Context, snapshot *models.ActivitySnapshot) {
	m.mu.Lock()
	if snapshot != nil {
		m.snapshot = snapshot
	}
	current := m.snapshot
	if current == nil {
		// tick before the first document
		m.mu.Unlock()
		return
	}
	now := m.clock.Now().In(m.location)
	status := evaluator.Calculate(*current, now)
	previous := m.lastLevel
	level := status.Level
	m.lastLevel = &level
	m.status = &status
	m.state = StateReady
	m.evaluatedAt = now
	view := m.viewLocked()
	m.mu.Unlock()

	metrics.ObserveEvaluation(current.FamilyID, status.Level.String(), int(status.Level))

	if status.Level == models.LevelCritical && (previous == nil || *previous != models.LevelCritical) {
		m.notifyCritical(ctx, *current, status, previous, now)
	}

	m.views.publish(view)
}

func (m *Monitor) notifyCritical(ctx context.Context, snapshot models.ActivitySnapshot, status models.SafetyStatus, previous *models.SafetyLevel, now time.Time) {
	metrics.IncCriticalTransition(snapshot.FamilyID)
	if m.notifier == nil {
		return
	}

	event := models.CriticalTransition{
		EventID:       m.newEventID(),
		FamilyID:      snapshot.FamilyID,
		ElderlyName:   snapshot.ElderlyName,
		Message:       status.Message,
		PreviousLevel: previous,
		OccurredAt:    now,
		Status:        status,
	}

	nctx, cancel := context.WithTimeout(ctx, m.notifyTimeout)
	defer cancel()

	if err := m.notifier.NotifyCritical(nctx, event); err != nil {
		metrics.IncNotification(metrics.ResultError)
		m.logger.Error("Failed to notify critical transition",
			zap.String("family_id", event.FamilyID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}
	metrics.IncNotification(metrics.ResultSuccess)
	m.logger.Info("Critical transition notified",
		zap.String("family_id", event.FamilyID),
		zap.String("event_id", event.EventID),
		zap.Bool("manual_alert", status.ManualAlert),
	)
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (m *Monitor) fail(familyID string, err error) {
	metrics.IncStreamError(familyID)
	m.logger.Error("Document stream failed",
		zap.String("family_id", familyID),
		zap.Error(err),
	)

	m.mu.Lock()
	m.state = StateError
	m.lastErr = err
	view := m.viewLocked()
	m.mu.Unlock()

	m.views.publish(view)
}

func (m *Monitor) viewLocked() View {
	v := View{
		FamilyID:    m.familyID,
		State:       m.state,
		EvaluatedAt: m.evaluatedAt,
	}
	if m.state == StateError {
		v.Error = MessageLoadFailed
		return v
	}
	if m.status != nil {
		status := *m.status
		v.Status = &status
	}
	if m.snapshot != nil {
		v.ElderlyName = m.snapshot.ElderlyName
		v.LastPhoneActivity = m.snapshot.LastPhoneActivity
		v.BatteryLevel = m.snapshot.BatteryLevel
	}
	return v
}
