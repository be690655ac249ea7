package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/practice-hub/internal/clock"
	"github.com/wolfman30/practice-hub/internal/observability/metrics"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

type notificationRecorder struct {
	mu    sync.Mutex
	kinds []NotificationKind
}

func (r *notificationRecorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, n.Kind)
}

func (r *notificationRecorder) all() []NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NotificationKind(nil), r.kinds...)
}

type fakeTeardown struct {
	mu    sync.Mutex
	hooks map[int]func()
	next  int
}

func (f *fakeTeardown) OnTeardown(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hooks == nil {
		f.hooks = make(map[int]func())
	}
	id := f.next
	f.next++
	f.hooks[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.hooks, id)
	}
}

func (f *fakeTeardown) fire() {
	f.mu.Lock()
	hooks := make([]func(), 0, len(f.hooks))
	for _, fn := range f.hooks {
		hooks = append(hooks, fn)
	}
	f.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (f *fakeTeardown) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hooks)
}

type sessionFixture struct {
	clock    *clock.Fake
	store    *recordingStore
	notes    *notificationRecorder
	teardown *fakeTeardown
	registry *prometheus.Registry
	metrics  *metrics.DraftMetrics
}

func newFixture() *sessionFixture {
	fake := clock.NewFake(epoch)
	reg := prometheus.NewRegistry()
	return &sessionFixture{
		clock:    fake,
		store:    newRecordingStore(fake.Now),
		notes:    &notificationRecorder{},
		teardown: &fakeTeardown{},
		registry: reg,
		metrics:  metrics.NewDraftMetrics(reg),
	}
}

func newTestSession[T any](t *testing.T, fx *sessionFixture, cfg Config[T]) *Session[T] {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = fx.store
	}
	cfg.Clock = fx.clock
	cfg.Notifier = fx.notes
	cfg.Teardown = fx.teardown
	cfg.Logger = logging.New("error")
	cfg.Metrics = fx.metrics
	s, err := NewSession(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func counter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	for _, pair := range m.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
			return false
		}
	}
	return true
}

func decodeForm(t *testing.T, raw []byte) form {
	t.Helper()
	var record StoredDraft[form]
	require.NoError(t, json.Unmarshal(raw, &record))
	return record.Data
}

func TestNewSessionValidates(t *testing.T) {
	_, err := NewSession(Config[form]{Store: NewMemoryStore(0)})
	assert.Error(t, err)
	_, err = NewSession(Config[form]{Key: "k"})
	assert.Error(t, err)
}

func TestDebounceCollapsesBurstIntoOneSave(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "form-42", Data: form{Name: "A"}})

	s.Update(form{Name: "AB"})
	fx.clock.Advance(500 * time.Millisecond)
	s.Update(form{Name: "ABC"})

	fx.clock.Advance(1999 * time.Millisecond)
	assert.Empty(t, fx.store.writes())

	fx.clock.Advance(time.Millisecond)
	writes := fx.store.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "draft_form-42", writes[0].key)
	assert.Equal(t, epoch.Add(2500*time.Millisecond), writes[0].at)
	assert.Equal(t, form{Name: "ABC"}, decodeForm(t, writes[0].value))

	// The periodic tick at 30s sees unchanged data.
	fx.clock.Advance(28 * time.Second)
	assert.Len(t, fx.store.writes(), 1)
}

func TestManyRapidUpdatesSaveOnceAfterLast(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[[]int]{Key: "list"})

	for i := 1; i <= 10; i++ {
		s.Update([]int{i})
		fx.clock.Advance(100 * time.Millisecond)
	}
	last := fx.clock.Now().Add(-100 * time.Millisecond)

	fx.clock.Advance(DefaultDebounce)
	writes := fx.store.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, last.Add(DefaultDebounce), writes[0].at)
}

func TestPerformAutoSaveIsChangeGated(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "k", Data: form{Name: "A"}})
	ctx := context.Background()

	s.PerformAutoSave(ctx)
	s.PerformAutoSave(ctx)
	assert.Len(t, fx.store.writes(), 1)

	s.Update(form{Name: "B"})
	s.PerformAutoSave(ctx)
	assert.Len(t, fx.store.writes(), 2)
	assert.Equal(t, 2.0, counter(t, fx.registry, "practicehub_drafts_writes_total", map[string]string{"reason": "manual", "result": "ok"}))
}

func TestPerformAutoSaveSkipsEmptyData(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	nilMap := newTestSession(t, fx, Config[map[string]any]{Key: "nil"})
	nilMap.PerformAutoSave(ctx)

	emptyMap := newTestSession(t, fx, Config[map[string]any]{Key: "empty", Data: map[string]any{}})
	emptyMap.PerformAutoSave(ctx)

	emptyString := newTestSession(t, fx, Config[string]{Key: "str"})
	emptyString.PerformAutoSave(ctx)
	emptyString.Flush(ctx)

	assert.Empty(t, fx.store.writes())
}

func TestLocalNotificationSuppressedOnFirstEvaluation(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "k", Data: form{Name: "A"}})
	ctx := context.Background()

	s.PerformAutoSave(ctx)
	assert.Len(t, fx.store.writes(), 1)
	assert.Empty(t, fx.notes.all())

	s.Update(form{Name: "AB"})
	s.PerformAutoSave(ctx)
	assert.Equal(t, []NotificationKind{NotificationSavedLocally}, fx.notes.all())
}

func TestServerSaveNotifiesSaved(t *testing.T) {
	fx := newFixture()
	var pushed []form
	s := newTestSession(t, fx, Config[form]{
		Key:  "k",
		Data: form{Name: "A"},
		OnSave: func(_ context.Context, data form) error {
			pushed = append(pushed, data)
			return nil
		},
	})

	s.PerformAutoSave(context.Background())
	assert.Equal(t, []form{{Name: "A"}}, pushed)
	assert.Equal(t, []NotificationKind{NotificationSaved}, fx.notes.all())
	assert.Equal(t, 1.0, counter(t, fx.registry, "practicehub_drafts_notifications_total", map[string]string{"kind": "saved"}))
}

func TestServerSaveFailureIsSilent(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{
		Key:    "k",
		Data:   form{Name: "A"},
		OnSave: func(context.Context, form) error { return errors.New("502") },
	})
	ctx := context.Background()

	s.PerformAutoSave(ctx)
	assert.Len(t, fx.store.writes(), 1, "durable snapshot is written before the server save")
	assert.Empty(t, fx.notes.all())

	// The snapshot counts as saved, so unchanged data is not retried.
	s.PerformAutoSave(ctx)
	assert.Len(t, fx.store.writes(), 1)
}

func TestPeriodicTickSavesChanges(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "k", Data: form{Name: "A"}, Interval: 10 * time.Second})

	fx.clock.Advance(10 * time.Second)
	require.Len(t, fx.store.writes(), 1)

	s.Update(form{Name: "B"})
	fx.clock.Advance(DefaultDebounce)
	require.Len(t, fx.store.writes(), 2)

	fx.clock.Advance(20 * time.Second)
	assert.Len(t, fx.store.writes(), 2)
	assert.Equal(t, 1, fx.clock.Pending())
}

func TestSetIntervalRestartsTick(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "k", Data: form{Name: "A"}})

	fx.clock.Advance(20 * time.Second)
	s.SetInterval(5 * time.Second)
	fx.clock.Advance(5 * time.Second)
	require.Len(t, fx.store.writes(), 1)
	assert.Equal(t, epoch.Add(25*time.Second), fx.store.writes()[0].at)
	assert.Equal(t, 1, fx.clock.Pending())
}

func TestDisabledSessionNeverWrites(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "k", Data: form{Name: "A"}, Disabled: true})
	ctx := context.Background()

	assert.Equal(t, 0, fx.clock.Pending())
	s.Update(form{Name: "B"})
	assert.Equal(t, 0, fx.clock.Pending())

	s.PerformAutoSave(ctx)
	fx.clock.Advance(time.Minute)
	assert.Empty(t, fx.store.writes())

	s.SetEnabled(true)
	assert.True(t, s.Enabled())
	fx.clock.Advance(DefaultInterval)
	require.Len(t, fx.store.writes(), 1)
	assert.Equal(t, form{Name: "B"}, decodeForm(t, fx.store.writes()[0].value))
}

func TestDisablingDropsPendingDebounce(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "k"})

	s.Update(form{Name: "A"})
	s.SetEnabled(false)
	fx.clock.Advance(time.Minute)
	assert.Empty(t, fx.store.writes())
}

func TestTeardownFlushesUnconditionally(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "k", Data: form{Name: "A"}})
	require.Equal(t, 1, fx.teardown.count())

	s.PerformAutoSave(context.Background())
	s.Update(form{Name: "AB"})

	// Teardown arrives before the debounce fires.
	fx.teardown.fire()
	writes := fx.store.writes()
	require.Len(t, writes, 2)
	assert.Equal(t, form{Name: "AB"}, decodeForm(t, writes[1].value))

	// Unchanged data is still written on flush.
	fx.teardown.fire()
	assert.Len(t, fx.store.writes(), 3)
	assert.Equal(t, 2.0, counter(t, fx.registry, "practicehub_drafts_writes_total", map[string]string{"reason": "flush"}))
}

func TestFlushWritesWhileAutosaveDisabled(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "k", Disabled: true})

	s.Update(form{Name: "B"})
	fx.clock.Advance(time.Minute)
	assert.Empty(t, fx.store.writes())

	fx.teardown.fire()
	writes := fx.store.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, form{Name: "B"}, decodeForm(t, writes[0].value))
}

func TestRestoredDataIsNotRewritten(t *testing.T) {
	fx := newFixture()
	var serverSaves int
	s := newTestSession(t, fx, Config[form]{
		Key:      "k",
		Data:     form{Name: "stored"},
		Restored: true,
		OnSave: func(context.Context, form) error {
			serverSaves++
			return nil
		},
	})

	fx.clock.Advance(DefaultInterval)
	assert.Empty(t, fx.store.writes())
	assert.Zero(t, serverSaves)
	assert.Empty(t, fx.notes.all())

	s.Update(form{Name: "edited"})
	fx.clock.Advance(DefaultDebounce)
	require.Len(t, fx.store.writes(), 1)
	assert.Equal(t, 1, serverSaves)
	assert.Equal(t, []NotificationKind{NotificationSaved}, fx.notes.all())
}

func TestCloseStopsTimersAndUnsubscribes(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "k", Data: form{Name: "A"}})
	s.Update(form{Name: "B"})
	require.Equal(t, 2, fx.clock.Pending())

	s.Close()
	s.Close()
	assert.Equal(t, 0, fx.clock.Pending())
	assert.Equal(t, 0, fx.teardown.count())

	s.Update(form{Name: "C"})
	fx.clock.Advance(time.Hour)
	assert.Empty(t, fx.store.writes())
	assert.Equal(t, form{Name: "C"}, s.Data())
}

func TestSaveNowLoadDraftRoundTrip(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{Key: "form-42", Data: form{Name: "ABC"}})
	ctx := context.Background()

	assert.False(t, s.HasDraft(ctx))
	assert.Nil(t, s.LoadDraft(ctx))

	s.SaveNow(ctx)
	require.True(t, s.HasDraft(ctx))
	record := s.LoadDraft(ctx)
	require.NotNil(t, record)
	assert.Equal(t, form{Name: "ABC"}, record.Data)
	assert.Equal(t, "1.0", record.Version)
	_, err := time.Parse(time.RFC3339, record.Timestamp)
	assert.NoError(t, err)

	s.ClearDraft(ctx)
	s.ClearDraft(ctx)
	assert.False(t, s.HasDraft(ctx))
	assert.Nil(t, s.LoadDraft(ctx))
}

func TestStorageFaultsAreSwallowed(t *testing.T) {
	fx := newFixture()
	s := newTestSession(t, fx, Config[form]{
		Key:   "k",
		Data:  form{Name: "A"},
		Store: failingStore{err: errors.New("quota")},
	})
	ctx := context.Background()

	s.SaveNow(ctx)
	s.PerformAutoSave(ctx)
	s.Flush(ctx)
	s.ClearDraft(ctx)
	assert.Nil(t, s.LoadDraft(ctx))
	assert.False(t, s.HasDraft(ctx))
	assert.Empty(t, fx.notes.all())

	assert.Equal(t, 3.0, counter(t, fx.registry, "practicehub_drafts_store_errors_total", map[string]string{"op": "set"}))
	assert.Equal(t, 2.0, counter(t, fx.registry, "practicehub_drafts_store_errors_total", map[string]string{"op": "get"}))
	assert.Equal(t, 1.0, counter(t, fx.registry, "practicehub_drafts_store_errors_total", map[string]string{"op": "delete"}))
}

func TestFailedWriteIsRetriedOnNextEvaluation(t *testing.T) {
	fx := newFixture()
	quota := NewMemoryStore(10)
	s := newTestSession(t, fx, Config[form]{Key: "k", Data: form{Name: "A"}, Store: quota})
	ctx := context.Background()

	s.PerformAutoSave(ctx)
	assert.False(t, s.HasDraft(ctx))

	// Nothing was recorded as saved, so the same data is attempted again.
	s.PerformAutoSave(ctx)
	assert.Equal(t, 2.0, counter(t, fx.registry, "practicehub_drafts_writes_total", map[string]string{"result": "error"}))
}

func TestCorruptRecordLoadsAsNil(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.store.MemoryStore.Set(context.Background(), StorageKey("k"), []byte("<html>")))
	s := newTestSession(t, fx, Config[form]{Key: "k"})

	assert.Nil(t, s.LoadDraft(context.Background()))
	assert.True(t, s.HasDraft(context.Background()))
}
