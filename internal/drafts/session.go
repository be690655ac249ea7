package drafts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/practice-hub/internal/clock"
	"github.com/wolfman30/practice-hub/internal/observability/metrics"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

// Write reasons recorded in metrics.
const (
	reasonInterval = "interval"
	reasonDebounce = "debounce"
	reasonManual   = "manual"
	reasonExplicit = "explicit"
	reasonFlush    = "flush"
)

// Config describes a draft session. Zero values fall back to defaults, and
// Disabled starts the session with autosave turned off.
type Config[T any] struct {
	Key  string
	Data T
	// OnSave, when set, pushes changed data to the server after the durable
	// snapshot is written.
	OnSave   func(ctx context.Context, data T) error
	Interval time.Duration
	Disabled bool
	Debounce time.Duration
	// Restored marks Data as the stored record's contents. The change gate
	// starts from it, so an untouched restored draft is not written again.
	Restored bool

	Store    Store
	Clock    clock.Clock
	Notifier Notifier
	Teardown Teardown
	Logger   *logging.Logger
	Metrics  *metrics.DraftMetrics
}

// Session snapshots one editor's data. It is safe for concurrent use.
type Session[T any] struct {
	key      string
	store    Store
	clock    clock.Clock
	notifier Notifier
	logger   *logging.Logger
	metrics  *metrics.DraftMetrics
	onSave   func(ctx context.Context, data T) error

	mu          sync.Mutex
	data        T
	interval    time.Duration
	debounce    time.Duration
	enabled     bool
	closed      bool
	evaluated   bool
	tick        clock.Timer
	tickGen     uint64
	pending     clock.Timer
	pendingGen  uint64
	unsubscribe func()

	// saveMu serializes durable writes; lastSaved is guarded by it.
	saveMu    sync.Mutex
	lastSaved []byte
}

// NewSession starts a session. The periodic tick is armed immediately when
// autosave is enabled, and the session subscribes to cfg.Teardown once.
func NewSession[T any](cfg Config[T]) (*Session[T], error) {
	if cfg.Key == "" {
		return nil, errors.New("drafts: session key required")
	}
	if cfg.Store == nil {
		return nil, errors.New("drafts: store required")
	}
	s := &Session[T]{
		key:      cfg.Key,
		store:    cfg.Store,
		clock:    cfg.Clock,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		onSave:   cfg.OnSave,
		data:     cfg.Data,
		interval: cfg.Interval,
		debounce: cfg.Debounce,
		enabled:  !cfg.Disabled,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}
	if cfg.Restored {
		if payload, err := json.Marshal(cfg.Data); err == nil && !IsEmpty(payload) {
			s.lastSaved = payload
		}
	}

	s.mu.Lock()
	s.armTickLocked()
	s.mu.Unlock()

	if cfg.Teardown != nil {
		s.unsubscribe = cfg.Teardown.OnTeardown(func() {
			s.Flush(context.Background())
		})
	}
	return s, nil
}

// Key returns the draft key.
func (s *Session[T]) Key() string {
	return s.key
}

// Data returns the latest data handed to the session.
func (s *Session[T]) Data() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Enabled reports whether autosave is on.
func (s *Session[T]) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Update replaces the session data and re-arms the debounce timer, so a
// burst of updates results in one save shortly after the last of them.
func (s *Session[T]) Update(data T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	if s.closed {
		return
	}
	s.stopPendingLocked()
	if !s.enabled {
		return
	}
	gen := s.pendingGen
	s.pending = s.clock.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		stale := s.closed || gen != s.pendingGen
		if !stale {
			s.pending = nil
		}
		s.mu.Unlock()
		if stale {
			return
		}
		s.performAutoSave(context.Background(), reasonDebounce)
	})
}

// SetInterval changes the periodic tick interval and restarts the tick.
func (s *Session[T]) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	s.armTickLocked()
}

// SetEnabled turns autosave on or off. Turning it off also drops a pending
// debounced save.
func (s *Session[T]) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	if !enabled {
		s.stopPendingLocked()
	}
	s.armTickLocked()
}

// PerformAutoSave writes a snapshot if the data changed since the last
// successful write.
func (s *Session[T]) PerformAutoSave(ctx context.Context) {
	s.performAutoSave(ctx, reasonManual)
}

func (s *Session[T]) performAutoSave(ctx context.Context, reason string) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	first := !s.evaluated
	s.evaluated = true
	enabled := s.enabled
	data := s.data
	s.mu.Unlock()

	if !enabled {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		s.metrics.ObserveStoreError("encode")
		s.logger.Warn("drafts: encode data failed", "draft_key", s.key, "error", err)
		return
	}
	if IsEmpty(payload) {
		return
	}
	if s.lastSaved != nil && bytes.Equal(payload, s.lastSaved) {
		return
	}
	if err := s.write(ctx, payload, reason); err != nil {
		return
	}
	s.lastSaved = payload

	if s.onSave != nil {
		if err := s.onSave(ctx, data); err != nil {
			s.logger.Warn("drafts: server save failed", "draft_key", s.key, "error", err)
			return
		}
		s.notify(ctx, NotificationSaved)
		return
	}
	if first {
		return
	}
	s.notify(ctx, NotificationSavedLocally)
}

// SaveNow writes the current data without consulting the change gate.
func (s *Session[T]) SaveNow(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	payload, err := json.Marshal(s.Data())
	if err != nil {
		s.metrics.ObserveStoreError("encode")
		s.logger.Warn("drafts: encode data failed", "draft_key", s.key, "error", err)
		return
	}
	_ = s.write(ctx, payload, reasonExplicit)
}

// Flush writes the latest data unconditionally, whether or not autosave is
// on. Only empty data is skipped. It is what runs on teardown.
func (s *Session[T]) Flush(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	payload, err := json.Marshal(s.Data())
	if err != nil {
		s.metrics.ObserveStoreError("encode")
		s.logger.Warn("drafts: encode data failed", "draft_key", s.key, "error", err)
		return
	}
	if IsEmpty(payload) {
		return
	}
	if err := s.write(ctx, payload, reasonFlush); err == nil {
		s.lastSaved = payload
	}
}

// LoadDraft returns the stored record, or nil when there is none or it cannot
// be read.
func (s *Session[T]) LoadDraft(ctx context.Context) *StoredDraft[T] {
	record, err := Load[T](ctx, s.store, s.key)
	if err != nil {
		s.metrics.ObserveStoreError("get")
		s.logger.Warn("drafts: load failed", "draft_key", s.key, "error", err)
		return nil
	}
	return record
}

// ClearDraft removes the stored record.
func (s *Session[T]) ClearDraft(ctx context.Context) {
	if err := Clear(ctx, s.store, s.key); err != nil {
		s.metrics.ObserveStoreError("delete")
		s.logger.Warn("drafts: clear failed", "draft_key", s.key, "error", err)
	}
}

// HasDraft reports whether a record is stored for the session key.
func (s *Session[T]) HasDraft(ctx context.Context) bool {
	ok, err := Exists(ctx, s.store, s.key)
	if err != nil {
		s.metrics.ObserveStoreError("get")
		s.logger.Warn("drafts: existence check failed", "draft_key", s.key, "error", err)
		return false
	}
	return ok
}

// Close stops both timers and drops the teardown subscription. It does not
// write; call Flush first to persist the latest data.
func (s *Session[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopPendingLocked()
	s.stopTickLocked()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Session[T]) write(ctx context.Context, payload json.RawMessage, reason string) error {
	if err := saveRaw(ctx, s.store, s.key, payload, s.clock.Now()); err != nil {
		s.metrics.ObserveWrite(reason, "error")
		s.metrics.ObserveStoreError("set")
		s.logger.Warn("drafts: snapshot write failed", "draft_key", s.key, "reason", reason, "error", err)
		return err
	}
	s.metrics.ObserveWrite(reason, "ok")
	s.logger.Debug("drafts: snapshot written", "draft_key", s.key, "reason", reason, "bytes", len(payload))
	return nil
}

func (s *Session[T]) notify(ctx context.Context, kind NotificationKind) {
	s.metrics.ObserveNotification(string(kind))
	s.notifier.Notify(ctx, Notification{Kind: kind, Key: s.key, At: s.clock.Now()})
}

func (s *Session[T]) armTickLocked() {
	s.stopTickLocked()
	if !s.enabled || s.closed {
		return
	}
	gen := s.tickGen
	s.tick = s.clock.AfterFunc(s.interval, func() { s.onTick(gen) })
}

func (s *Session[T]) onTick(gen uint64) {
	s.mu.Lock()
	stale := s.closed || gen != s.tickGen
	s.mu.Unlock()
	if stale {
		return
	}

	s.performAutoSave(context.Background(), reasonInterval)

	s.mu.Lock()
	if !s.closed && gen == s.tickGen {
		s.armTickLocked()
	}
	s.mu.Unlock()
}

func (s *Session[T]) stopTickLocked() {
	s.tickGen++
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
}

func (s *Session[T]) stopPendingLocked() {
	s.pendingGen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
