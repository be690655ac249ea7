// Package drafts snapshots in-progress editor state to a durable key-value
// store so edits survive disconnects and restarts.
//
// A Session owns one editing session: it tracks the latest data, writes a
// snapshot when the data changes (debounced), on a periodic tick and on
// teardown, and exposes explicit load/clear/save operations. Storage faults
// never reach the editor; they are logged and counted instead.
package drafts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// Version is stamped on every stored record.
	Version = "1.0"
	// KeyPrefix is prepended to a draft key to form its storage key.
	KeyPrefix = "draft_"
	// TimestampLayout is the ISO-8601 layout used for StoredDraft.Timestamp.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

	DefaultInterval = 30 * time.Second
	DefaultDebounce = 2 * time.Second
)

// ErrQuotaExceeded is returned by stores that enforce a size budget.
var ErrQuotaExceeded = errors.New("drafts: storage quota exceeded")

// StoredDraft is the persisted envelope around a draft's data.
type StoredDraft[T any] struct {
	Data      T      `json:"data"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SavedAt parses Timestamp.
func (d *StoredDraft[T]) SavedAt() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, d.Timestamp)
}

// Store is a durable byte-oriented key-value store.
type Store interface {
	// Get returns the value for key. The boolean is false when key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// StorageKey maps a draft key to the key used in the Store.
func StorageKey(key string) string {
	return KeyPrefix + key
}

// Save writes data under key stamped with now.
func Save[T any](ctx context.Context, store Store, key string, data T, now time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("drafts: encode data: %w", err)
	}
	return saveRaw(ctx, store, key, payload, now)
}

func saveRaw(ctx context.Context, store Store, key string, payload json.RawMessage, now time.Time) error {
	record, err := json.Marshal(StoredDraft[json.RawMessage]{
		Data:      payload,
		Timestamp: now.UTC().Format(TimestampLayout),
		Version:   Version,
	})
	if err != nil {
		return fmt.Errorf("drafts: encode record: %w", err)
	}
	if err := store.Set(ctx, StorageKey(key), record); err != nil {
		return fmt.Errorf("drafts: set %s: %w", key, err)
	}
	return nil
}

// Load returns the record stored under key, or nil when there is none.
func Load[T any](ctx context.Context, store Store, key string) (*StoredDraft[T], error) {
	raw, ok, err := store.Get(ctx, StorageKey(key))
	if err != nil {
		return nil, fmt.Errorf("drafts: get %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	var record StoredDraft[T]
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("drafts: decode %s: %w", key, err)
	}
	return &record, nil
}

// Clear removes the record stored under key.
func Clear(ctx context.Context, store Store, key string) error {
	if err := store.Delete(ctx, StorageKey(key)); err != nil {
		return fmt.Errorf("drafts: delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a record is stored under key.
func Exists(ctx context.Context, store Store, key string) (bool, error) {
	_, ok, err := store.Get(ctx, StorageKey(key))
	if err != nil {
		return false, fmt.Errorf("drafts: get %s: %w", key, err)
	}
	return ok, nil
}

// IsEmpty reports whether a serialized value carries no content.
func IsEmpty(payload []byte) bool {
	switch string(bytes.TrimSpace(payload)) {
	case "", "null", `""`, "{}", "[]":
		return true
	}
	return false
}
