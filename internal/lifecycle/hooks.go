// Package lifecycle broadcasts the process "about to terminate" signal to
// components that need a last chance to persist state.
package lifecycle

import (
	"sync"

	"github.com/wolfman30/practice-hub/pkg/logging"
)

// Hooks collects teardown callbacks and runs them once.
type Hooks struct {
	logger *logging.Logger

	mu    sync.Mutex
	next  uint64
	hooks map[uint64]func()
	order []uint64
	ran   bool
}

func NewHooks(logger *logging.Logger) *Hooks {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hooks{logger: logger, hooks: make(map[uint64]func())}
}

// OnTeardown registers fn. The returned function unregisters it and is safe to
// call more than once. Registering after Run is a no-op.
func (h *Hooks) OnTeardown(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ran || fn == nil {
		return func() {}
	}
	h.next++
	id := h.next
	h.hooks[id] = fn
	h.order = append(h.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.hooks, id)
		})
	}
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// Run invokes every registered hook in registration order. Only the first call
// does anything. A panicking hook is logged and does not stop the others.
func (h *Hooks) Run() {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return
	}
	h.ran = true
	fns := make([]func(), 0, len(h.hooks))
	for _, id := range h.order {
		if fn, ok := h.hooks[id]; ok {
			fns = append(fns, fn)
		}
	}
	h.hooks = make(map[uint64]func())
	h.order = nil
	h.mu.Unlock()

	h.logger.Info("running teardown hooks", "count", len(fns))
	for _, fn := range fns {
		h.invoke(fn)
	}
}

func (h *Hooks) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("teardown hook panicked", "panic", r)
		}
	}()
	fn()
}
