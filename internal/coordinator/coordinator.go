// Package coordinator de-duplicates concurrent requests that share a key and
// enforces a minimum spacing between executions of the same key.
//
// A Coordinator is meant to live for the whole process: build one at the
// composition root and inject it into every data-fetching caller.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/practice-hub/internal/clock"
	"github.com/wolfman30/practice-hub/internal/observability/metrics"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

// DefaultMinInterval is the minimum spacing between two executions of the
// same key.
const DefaultMinInterval = 2 * time.Second

var (
	// ErrRequestPanicked wraps a panic recovered from a request function.
	ErrRequestPanicked = errors.New("coordinator: request panicked")
	// ErrResultType is returned by Do when a shared result does not have the
	// caller's type.
	ErrResultType = errors.New("coordinator: shared result has unexpected type")
)

// RequestFunc performs the underlying request. It receives a context detached
// from the caller's cancellation; once started it always runs to completion.
type RequestFunc func(ctx context.Context) (any, error)

// Config controls a Coordinator.
type Config struct {
	MinInterval time.Duration
	Clock       clock.Clock
	Logger      *logging.Logger
	Metrics     *metrics.CoordinatorMetrics
	Tracer      trace.Tracer
}

// Coordinator coalesces concurrent executions per key and throttles repeated
// executions of a key.
type Coordinator struct {
	minInterval time.Duration
	clock       clock.Clock
	logger      *logging.Logger
	metrics     *metrics.CoordinatorMetrics
	tracer      trace.Tracer

	mu        sync.Mutex
	nextID    uint64
	pending   map[string]*execution
	lastStart map[string]time.Time
}

type execution struct {
	id     uint64
	forced bool
	done   chan struct{}
	val    any
	err    error
}

// New builds a Coordinator. Zero-valued config fields fall back to defaults.
func New(cfg Config) *Coordinator {
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("practicehub.internal.coordinator")
	}
	return &Coordinator{
		minInterval: minInterval,
		clock:       clk,
		logger:      logger,
		metrics:     cfg.Metrics,
		tracer:      tracer,
		pending:     make(map[string]*execution),
		lastStart:   make(map[string]time.Time),
	}
}

// Execute runs fn under key.
//
// Unless forceRefresh is set, a call arriving while an execution for key is in
// flight shares that execution's outcome, and a new execution starting less
// than MinInterval after the previous start for key is delayed until the
// interval has elapsed. Errors from fn are returned unchanged; nothing is
// retried. If ctx ends first the caller stops waiting and receives ctx.Err()
// while the execution keeps running for any other sharers.
func (c *Coordinator) Execute(ctx context.Context, key string, fn RequestFunc, forceRefresh bool) (any, error) {
	if fn == nil {
		return nil, errors.New("coordinator: request function required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if !forceRefresh {
		if exec, ok := c.pending[key]; ok {
			c.mu.Unlock()
			c.metrics.ObserveCoalesced()
			c.logger.Debug("coordinator: joined in-flight request", "key", key, "execution_id", exec.id)
			return wait(ctx, exec)
		}
	}

	var delay time.Duration
	if last, ok := c.lastStart[key]; ok && !forceRefresh {
		if elapsed := c.clock.Now().Sub(last); elapsed < c.minInterval {
			delay = c.minInterval - elapsed
		}
	}
	c.nextID++
	exec := &execution{id: c.nextID, forced: forceRefresh, done: make(chan struct{})}
	c.pending[key] = exec
	// The scheduled start counts as the last start until run records the
	// actual one, so executions registered later keep their spacing even
	// after ClearPending drops this one.
	c.lastStart[key] = c.clock.Now().Add(delay)
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), key, exec, fn, delay)
	return wait(ctx, exec)
}

// IsPending reports whether an execution is registered for key.
func (c *Coordinator) IsPending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// ClearPending forgets every in-flight execution without cancelling any of
// them. Later calls start fresh executions instead of joining old ones.
func (c *Coordinator) ClearPending() {
	c.mu.Lock()
	dropped := len(c.pending)
	c.pending = make(map[string]*execution)
	c.mu.Unlock()
	if dropped > 0 {
		c.logger.Info("coordinator: cleared pending requests", "count", dropped)
	}
}

func (c *Coordinator) run(ctx context.Context, key string, exec *execution, fn RequestFunc, delay time.Duration) {
	ctx, span := c.tracer.Start(ctx, "coordinator.execute", trace.WithAttributes(
		attribute.String("coordinator.key", key),
		attribute.Bool("coordinator.forced", exec.forced),
	))
	defer span.End()

	if delay > 0 {
		c.metrics.ObserveThrottleWait(delay.Seconds())
		span.SetAttributes(attribute.Int64("coordinator.throttle_ms", delay.Milliseconds()))
		clock.Sleep(c.clock, delay, nil)
	}

	if !exec.forced {
		c.mu.Lock()
		c.lastStart[key] = c.clock.Now()
		c.mu.Unlock()
	}

	exec.val, exec.err = invoke(ctx, fn)

	c.mu.Lock()
	if current, ok := c.pending[key]; ok && current.id == exec.id {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	outcome := "success"
	if exec.err != nil {
		outcome = "error"
		span.RecordError(exec.err)
		c.logger.Debug("coordinator: request failed", "key", key, "error", exec.err)
	}
	c.metrics.ObserveExecution(outcome, exec.forced)
	close(exec.done)
}

func invoke(ctx context.Context, fn RequestFunc) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			val = nil
			err = fmt.Errorf("%w: %v", ErrRequestPanicked, r)
		}
	}()
	return fn(ctx)
}

func wait(ctx context.Context, exec *execution) (any, error) {
	select {
	case <-exec.done:
		return exec.val, exec.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do is the typed form of Execute.
func Do[T any](ctx context.Context, c *Coordinator, key string, fn func(context.Context) (T, error), forceRefresh bool) (T, error) {
	var zero T
	val, err := c.Execute(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, forceRefresh)
	if err != nil {
		return zero, err
	}
	typed, ok := val.(T)
	if !ok {
		if val == nil {
			return zero, nil
		}
		return zero, fmt.Errorf("%w: key %q holds %T", ErrResultType, key, val)
	}
	return typed, nil
}
