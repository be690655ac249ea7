package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	f := NewFake(epoch)
	var order []string
	f.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	f.AfterFunc(time.Second, func() { order = append(order, "a") })
	f.AfterFunc(5*time.Second, func() { order = append(order, "c") })

	f.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, epoch.Add(2*time.Second), f.Now())
	assert.Equal(t, 1, f.Pending())

	f.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestFakeStopPreventsCallback(t *testing.T) {
	f := NewFake(epoch)
	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	f.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeHonorsTimersArmedByCallbacks(t *testing.T) {
	f := NewFake(epoch)
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		f.AfterFunc(10*time.Second, tick)
	}
	f.AfterFunc(10*time.Second, tick)

	f.Advance(35 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, f.Pending())
}

func TestFakeBlockUntil(t *testing.T) {
	f := NewFake(epoch)
	armed := make(chan struct{})
	go func() {
		f.AfterFunc(time.Second, func() {})
		close(armed)
	}()

	done := make(chan struct{})
	go func() {
		f.BlockUntil(1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BlockUntil did not return")
	}
	<-armed
	require.Equal(t, 1, f.Pending())
}

func TestSleepReturnsAfterAdvance(t *testing.T) {
	f := NewFake(epoch)
	result := make(chan bool, 1)
	go func() {
		result <- Sleep(f, 2*time.Second, nil)
	}()

	f.BlockUntil(1)
	f.Advance(2 * time.Second)

	select {
	case ok := <-result:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Sleep did not return")
	}
}

func TestSleepAbortsWhenDone(t *testing.T) {
	f := NewFake(epoch)
	done := make(chan struct{})
	result := make(chan bool, 1)
	go func() {
		result <- Sleep(f, time.Hour, done)
	}()

	f.BlockUntil(1)
	close(done)

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Sleep did not abort")
	}
	assert.Equal(t, 0, f.Pending())
}

func TestSleepNonPositiveReturnsImmediately(t *testing.T) {
	assert.True(t, Sleep(NewFake(epoch), 0, nil))
}

func TestRealClock(t *testing.T) {
	c := Real()
	fired := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
