package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type form struct {
	Name string `json:"name"`
}

// recordingStore wraps a MemoryStore and records every Set.
type recordingStore struct {
	*MemoryStore
	now func() time.Time

	mu   sync.Mutex
	sets []recordedSet
}

type recordedSet struct {
	key   string
	value []byte
	at    time.Time
}

func newRecordingStore(now func() time.Time) *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore(0), now: now}
}

func (r *recordingStore) Set(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	r.sets = append(r.sets, recordedSet{key: key, value: append([]byte(nil), value...), at: r.now()})
	r.mu.Unlock()
	return r.MemoryStore.Set(ctx, key, value)
}

func (r *recordingStore) writes() []recordedSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedSet(nil), r.sets...)
}

type failingStore struct {
	err error
}

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStore) Set(context.Context, string, []byte) error         { return f.err }
func (f failingStore) Delete(context.Context, string) error              { return f.err }

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, Save(ctx, store, "form-42", form{Name: "ABC"}, epoch))

	raw, ok, err := store.Get(ctx, "draft_form-42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"data":{"name":"ABC"},"timestamp":"2026-03-02T09:00:00.000Z","version":"1.0"}`, string(raw))

	record, err := Load[form](ctx, store, "form-42")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, form{Name: "ABC"}, record.Data)
	assert.Equal(t, Version, record.Version)
	savedAt, err := record.SavedAt()
	require.NoError(t, err)
	assert.True(t, savedAt.Equal(epoch))
}

func TestLoadMissingReturnsNil(t *testing.T) {
	record, err := Load[form](context.Background(), NewMemoryStore(0), "nope")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestLoadCorruptRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.Set(ctx, StorageKey("broken"), []byte("{not json")))

	_, err := Load[form](ctx, store, "broken")
	assert.Error(t, err)
}

func TestClearAndExists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, Save(ctx, store, "k", []string{"a"}, epoch))

	ok, err := Exists(ctx, store, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, Clear(ctx, store, "k"))
	require.NoError(t, Clear(ctx, store, "k"))

	ok, err = Exists(ctx, store, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHelpersWrapStoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	store := failingStore{err: boom}

	assert.ErrorIs(t, Save(ctx, store, "k", 1, epoch), boom)
	_, err := Load[int](ctx, store, "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, Clear(ctx, store, "k"), boom)
	_, err = Exists(ctx, store, "k")
	assert.ErrorIs(t, err, boom)
}

func TestIsEmpty(t *testing.T) {
	for _, payload := range []string{"", "null", `""`, "{}", "[]", " null "} {
		assert.True(t, IsEmpty([]byte(payload)), payload)
	}
	for _, payload := range []string{"0", "false", `"a"`, `{"a":1}`, "[1]"} {
		assert.False(t, IsEmpty([]byte(payload)), payload)
	}
}

func TestMemoryStoreQuota(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20)

	require.NoError(t, store.Set(ctx, "k", []byte("0123456789")))
	assert.Equal(t, 11, store.Used())

	// Overwriting only counts the new value.
	require.NoError(t, store.Set(ctx, "k", []byte("0123456789abcdef")))
	assert.Equal(t, 17, store.Used())

	err := store.Set(ctx, "other", []byte("xyz"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0123456789abcdef", string(value))

	require.NoError(t, store.Delete(ctx, "k"))
	assert.Equal(t, 0, store.Used())
	require.NoError(t, store.Set(ctx, "other", []byte("xyz")))
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	value := []byte(`{"a":1}`)
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'X'

	got, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, json.Valid(got))
}
