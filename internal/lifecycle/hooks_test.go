package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/practice-hub/internal/drafts"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

var _ drafts.Teardown = (*Hooks)(nil)

func TestRunInvokesHooksInOrderOnce(t *testing.T) {
	h := NewHooks(logging.New("error"))
	var calls []string
	h.OnTeardown(func() { calls = append(calls, "a") })
	h.OnTeardown(func() { calls = append(calls, "b") })

	h.Run()
	h.Run()
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 0, h.Len())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := NewHooks(nil)
	fired := false
	unsubscribe := h.OnTeardown(func() { fired = true })
	keep := h.OnTeardown(func() {})
	require.Equal(t, 2, h.Len())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, h.Len())

	h.Run()
	assert.False(t, fired)
	keep()
}

func TestPanickingHookDoesNotStopOthers(t *testing.T) {
	h := NewHooks(logging.New("error"))
	second := false
	h.OnTeardown(func() { panic("boom") })
	h.OnTeardown(func() { second = true })

	assert.NotPanics(t, h.Run)
	assert.True(t, second)
}

func TestRegisterAfterRunIsNoop(t *testing.T) {
	h := NewHooks(nil)
	h.Run()
	unsubscribe := h.OnTeardown(func() { t.Fatal("must not run") })
	unsubscribe()
	h.Run()
	assert.Equal(t, 0, h.Len())
}

func TestTeardownFlushesDraftSession(t *testing.T) {
	h := NewHooks(logging.New("error"))
	store := drafts.NewMemoryStore(0)
	session, err := drafts.NewSession(drafts.Config[map[string]string]{
		Key:      "form-42",
		Data:     map[string]string{"name": "A"},
		Store:    store,
		Teardown: h,
		Logger:   logging.New("error"),
	})
	require.NoError(t, err)
	defer session.Close()

	session.Update(map[string]string{"name": "AB"})
	h.Run()

	record, err := drafts.Load[map[string]string](context.Background(), store, "form-42")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "AB", record.Data["name"])
}
