package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-survival/internal/clock"
	"wisefido-survival/internal/models"
	"wisefido-survival/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var kst = time.FixedZone("KST", 9*3600)

// Monday 2026-03-02 12:00 KST
var base = time.Date(2026, 3, 2, 12, 0, 0, 0, kst)

type fakeSub struct {
	updates chan store.DocumentUpdate
	closed  chan struct{}
	once    sync.Once
}

func (s *fakeSub) Updates() <-chan store.DocumentUpdate { return s.updates }

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSub) push(t *testing.T, doc map[string]interface{}) {
	t.Helper()
	select {
	case s.updates <- store.DocumentUpdate{Document: doc}:
	case <-time.After(time.Second):
		t.Fatal("push blocked")
	}
}

func (s *fakeSub) fail(err error) {
	s.updates <- store.DocumentUpdate{Err: err}
}

type fakeStore struct {
	mu           sync.Mutex
	subscribeErr error
	clearErr     error
	cleared      []string
	subscribes   int
	subs         chan *fakeSub
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: make(chan *fakeSub, 8)}
}

func (f *fakeStore) Subscribe(ctx context.Context, familyID string) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	s := &fakeSub{
		updates: make(chan store.DocumentUpdate, 4),
		closed:  make(chan struct{}),
	}
	f.subs <- s
	return s, nil
}

func (f *fakeStore) ClearAlert(ctx context.Context, familyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, familyID)
	return nil
}

func (f *fakeStore) setSubscribeErr(err error) {
	f.mu.Lock()
	f.subscribeErr = err
	f.mu.Unlock()
}

func (f *fakeStore) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

func (f *fakeStore) nextSub(t *testing.T) *fakeSub {
	t.Helper()
	select {
	case s := <-f.subs:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription")
		return nil
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.CriticalTransition
}

func (r *recordingNotifier) NotifyCritical(ctx context.Context, event models.CriticalTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingNotifier) last() models.CriticalTransition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func familyDoc(last time.Time) map[string]interface{} {
	return map[string]interface{}{
		models.KeyLastPhoneActivity:   last,
		models.KeyElderlyName:         "김영희",
		models.KeyAlertThresholdHours: 12,
	}
}

func waitView(t *testing.T, ch <-chan View, pred func(View) bool) View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "watch channel closed")
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for view")
			return View{}
		}
	}
}

func evaluatedAt(ts time.Time) func(View) bool {
	return func(v View) bool {
		return v.State == StateReady && v.EvaluatedAt.Equal(ts)
	}
}

type harness struct {
	clock    *clock.Manual
	store    *fakeStore
	notifier *recordingNotifier
	monitor  *Monitor
	views    <-chan View
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.NewManual(base),
		store:    newFakeStore(),
		notifier: &recordingNotifier{},
	}
	h.monitor = New(h.store, h.notifier, Options{
		Clock:    h.clock,
		Location: kst,
	}, zap.NewNop())
	views, cancel := h.monitor.Watch()
	h.views = views
	t.Cleanup(func() {
		h.monitor.Stop()
		cancel()
	})
	return h
}

// tick advances the clock and waits until the evaluation is visible
func (h *harness) tick(t *testing.T, d time.Duration) View {
	t.Helper()
	h.clock.Advance(d)
	h.clock.Tick()
	return waitView(t, h.views, evaluatedAt(h.clock.Now()))
}

func TestMonitor_StartRequiresFamilyID(t *testing.T) {
	h := newHarness(t)

	err := h.monitor.Start(context.Background(), "")
	assert.ErrorIs(t, err, ErrFamilyIDRequired)
	assert.Equal(t, StateUninitialized, h.monitor.Status().State)
	assert.Equal(t, 0, h.store.subscribeCount())
}

func TestMonitor_LoadingThenReady(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	waitView(t, h.views, func(v View) bool { return v.State == StateLoading })

	sub := h.store.nextSub(t)
	sub.push(t, familyDoc(base.Add(-3*time.Hour)))

	v := waitView(t, h.views, evaluatedAt(base))
	require.NotNil(t, v.Status)
	assert.Equal(t, "family-1", v.FamilyID)
	assert.Equal(t, models.LevelSafe, v.Status.Level)
	assert.Equal(t, 3*time.Hour, v.Status.TimeSinceLastActivity)
	assert.Equal(t, "김영희", v.ElderlyName)
	assert.Equal(t, 0, h.notifier.count())
}

func TestMonitor_StartSameFamilyIsIdempotent(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	h.store.nextSub(t)
	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))

	assert.Equal(t, 1, h.store.subscribeCount())
}

func TestMonitor_StartOtherFamilyResets(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	first := h.store.nextSub(t)
	first.push(t, familyDoc(base.Add(-3*time.Hour)))
	waitView(t, h.views, evaluatedAt(base))

	require.NoError(t, h.monitor.Start(context.Background(), "family-2"))
	v := waitView(t, h.views, func(v View) bool { return v.FamilyID == "family-2" })
	assert.Equal(t, StateLoading, v.State)
	assert.Nil(t, v.Status)

	select {
	case <-first.closed:
	case <-time.After(time.Second):
		t.Fatal("previous subscription not closed")
	}
	h.store.nextSub(t)
	assert.Equal(t, 2, h.store.subscribeCount())
}

func TestMonitor_FiresOncePerCriticalEdge(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	sub := h.store.nextSub(t)
	sub.push(t, familyDoc(base.Add(-8*time.Hour)))
	v := waitView(t, h.views, evaluatedAt(base))
	assert.Equal(t, models.LevelSafe, v.Status.Level)

	// 11h: warning
	v = h.tick(t, 3*time.Hour)
	assert.Equal(t, models.LevelWarning, v.Status.Level)
	assert.Equal(t, 0, h.notifier.count())

	// 12h: critical, fires
	v = h.tick(t, time.Hour)
	assert.Equal(t, models.LevelCritical, v.Status.Level)
	assert.Equal(t, 1, h.notifier.count())

	// still critical on later ticks
	h.tick(t, time.Minute)
	h.tick(t, time.Hour)
	assert.Equal(t, 1, h.notifier.count())

	event := h.notifier.last()
	assert.Equal(t, "family-1", event.FamilyID)
	assert.Equal(t, "김영희", event.ElderlyName)
	require.NotNil(t, event.PreviousLevel)
	assert.Equal(t, models.LevelWarning, *event.PreviousLevel)
	assert.NotEmpty(t, event.EventID)
	assert.True(t, event.OccurredAt.Equal(base.Add(4*time.Hour)))
}

func TestMonitor_FreshActivityResetsEdge(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	sub := h.store.nextSub(t)
	sub.push(t, familyDoc(base.Add(-13*time.Hour)))
	v := waitView(t, h.views, evaluatedAt(base))
	assert.Equal(t, models.LevelCritical, v.Status.Level)
	// first evaluation has no previous level
	assert.Equal(t, 1, h.notifier.count())
	assert.Nil(t, h.notifier.last().PreviousLevel)

	h.clock.Advance(time.Minute)
	sub.push(t, familyDoc(h.clock.Now()))
	v = waitView(t, h.views, evaluatedAt(h.clock.Now()))
	assert.Equal(t, models.LevelSafe, v.Status.Level)

	v = h.tick(t, 12*time.Hour)
	assert.Equal(t, models.LevelCritical, v.Status.Level)
	assert.Equal(t, 2, h.notifier.count())
}

func TestMonitor_ClearThenStaleDocumentDoesNotRefire(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	sub := h.store.nextSub(t)

	doc := familyDoc(base.Add(-13 * time.Hour))
	doc[models.KeyManualAlertActive] = true
	sub.push(t, doc)
	v := waitView(t, h.views, evaluatedAt(base))
	assert.True(t, v.Status.ManualAlert)
	assert.Equal(t, 1, h.notifier.count())

	require.NoError(t, h.monitor.ClearCriticalAlert(context.Background(), "family-1"))
	// nothing changes locally until the store pushes
	assert.True(t, h.monitor.Status().Status.ManualAlert)

	h.clock.Advance(time.Minute)
	sub.push(t, familyDoc(base.Add(-13*time.Hour)))
	v = waitView(t, h.views, evaluatedAt(h.clock.Now()))
	assert.False(t, v.Status.ManualAlert)
	assert.Equal(t, models.LevelCritical, v.Status.Level)
	assert.Equal(t, 1, h.notifier.count())
	assert.Equal(t, []string{"family-1"}, h.store.cleared)
}

func TestMonitor_SleepWindowUsesLocation(t *testing.T) {
	h := newHarness(t)
	// 23:30 KST
	h.clock.Set(time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC))

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	sub := h.store.nextSub(t)

	doc := familyDoc(h.clock.Now().Add(-13 * time.Hour))
	doc[models.KeySleepSchedule] = map[string]interface{}{
		models.KeySleepEnabled:     true,
		models.KeySleepStartHour:   22,
		models.KeySleepStartMinute: 0,
		models.KeySleepEndHour:     6,
		models.KeySleepEndMinute:   0,
	}
	sub.push(t, doc)

	v := waitView(t, h.views, evaluatedAt(h.clock.Now()))
	assert.Equal(t, models.LevelSafe, v.Status.Level)
	assert.True(t, v.Status.InSleepMode)
	assert.True(t, v.Status.AlertsPaused)
	assert.Equal(t, 0, h.notifier.count())

	// 06:30 KST, window over
	v = h.tick(t, 7*time.Hour)
	assert.Equal(t, models.LevelCritical, v.Status.Level)
	assert.Equal(t, 1, h.notifier.count())
}

func TestMonitor_StreamErrorAndRetry(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	sub := h.store.nextSub(t)
	sub.push(t, familyDoc(base.Add(-time.Hour)))
	waitView(t, h.views, evaluatedAt(base))

	assert.ErrorIs(t, h.monitor.Retry(), ErrNotInErrorState)

	sub.fail(store.ErrStreamFailed)
	v := waitView(t, h.views, func(v View) bool { return v.State == StateError })
	assert.Equal(t, MessageLoadFailed, v.Error)
	assert.Nil(t, v.Status)
	assert.ErrorIs(t, h.monitor.Err(), store.ErrStreamFailed)

	select {
	case <-sub.closed:
	case <-time.After(time.Second):
		t.Fatal("failed subscription not closed")
	}

	require.NoError(t, h.monitor.Retry())
	retried := h.store.nextSub(t)
	retried.push(t, familyDoc(base.Add(-time.Hour)))
	v = waitView(t, h.views, evaluatedAt(base))
	assert.Equal(t, models.LevelSafe, v.Status.Level)
	assert.NoError(t, h.monitor.Err())
}

func TestMonitor_RetryKeepsCriticalEdge(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	sub := h.store.nextSub(t)
	sub.push(t, familyDoc(base.Add(-13*time.Hour)))
	v := waitView(t, h.views, evaluatedAt(base))
	assert.Equal(t, models.LevelCritical, v.Status.Level)
	assert.Equal(t, 1, h.notifier.count())

	sub.fail(store.ErrStreamFailed)
	waitView(t, h.views, func(v View) bool { return v.State == StateError })

	require.NoError(t, h.monitor.Retry())
	retried := h.store.nextSub(t)
	h.clock.Advance(time.Minute)
	retried.push(t, familyDoc(base.Add(-13*time.Hour)))
	v = waitView(t, h.views, evaluatedAt(h.clock.Now()))

	assert.Equal(t, models.LevelCritical, v.Status.Level)
	assert.Equal(t, 1, h.notifier.count())
}

func TestMonitor_StopThenStartResetsEdge(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	sub := h.store.nextSub(t)
	sub.push(t, familyDoc(base.Add(-13*time.Hour)))
	waitView(t, h.views, evaluatedAt(base))
	assert.Equal(t, 1, h.notifier.count())

	h.monitor.Stop()
	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	restarted := h.store.nextSub(t)
	h.clock.Advance(time.Minute)
	restarted.push(t, familyDoc(base.Add(-13*time.Hour)))
	waitView(t, h.views, evaluatedAt(h.clock.Now()))

	assert.Equal(t, 2, h.notifier.count())
	assert.Nil(t, h.notifier.last().PreviousLevel)
}

func TestMonitor_StartRestartsLoopAfterParentCancel(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.monitor.Start(ctx, "family-1"))
	first := h.store.nextSub(t)
	first.push(t, familyDoc(base.Add(-time.Hour)))
	waitView(t, h.views, evaluatedAt(base))

	cancel()
	select {
	case <-first.closed:
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after parent cancel")
	}

	// the loop is gone, so the same family must subscribe again
	require.Eventually(t, func() bool {
		require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
		return h.store.subscribeCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	second := h.store.nextSub(t)
	h.clock.Advance(time.Minute)
	second.push(t, familyDoc(base.Add(-time.Hour)))
	v := waitView(t, h.views, evaluatedAt(h.clock.Now()))
	assert.Equal(t, models.LevelSafe, v.Status.Level)
}

func TestMonitor_SubscribeErrorThenRetry(t *testing.T) {
	h := newHarness(t)
	h.store.setSubscribeErr(errors.New("connection refused"))

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	waitView(t, h.views, func(v View) bool { return v.State == StateError })

	h.store.setSubscribeErr(nil)
	require.NoError(t, h.monitor.Retry())
	sub := h.store.nextSub(t)
	sub.push(t, familyDoc(base.Add(-time.Hour)))
	waitView(t, h.views, evaluatedAt(base))
	assert.Equal(t, 2, h.store.subscribeCount())
}

func TestMonitor_StopSilencesCallbacks(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	sub := h.store.nextSub(t)
	sub.push(t, familyDoc(base.Add(-11*time.Hour)))
	waitView(t, h.views, evaluatedAt(base))

	h.monitor.Stop()
	h.monitor.Stop()
	v := waitView(t, h.views, func(v View) bool { return v.State == StateUninitialized })
	assert.Nil(t, v.Status)

	select {
	case <-sub.closed:
	default:
		t.Fatal("subscription still open after Stop")
	}

	h.clock.Advance(2 * time.Hour)
	h.clock.Tick()
	sub.updates <- store.DocumentUpdate{Document: familyDoc(base.Add(-20 * time.Hour))}

	assert.Never(t, func() bool { return h.notifier.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, StateUninitialized, h.monitor.Status().State)
}

func TestMonitor_ClearCriticalAlertError(t *testing.T) {
	h := newHarness(t)
	h.store.clearErr = errors.New("permission denied")

	err := h.monitor.ClearCriticalAlert(context.Background(), "family-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	assert.ErrorIs(t, h.monitor.ClearCriticalAlert(context.Background(), ""), ErrFamilyIDRequired)
}

func TestMonitor_TickBeforeDocumentIsIgnored(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.monitor.Start(context.Background(), "family-1"))
	sub := h.store.nextSub(t)
	h.clock.Tick()

	sub.push(t, map[string]interface{}{})
	v := waitView(t, h.views, evaluatedAt(base))
	assert.False(t, v.Status.HasActivity)
	assert.Equal(t, models.LevelSafe, v.Status.Level)
}
