package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistryArmReplacesExistingTimer(t *testing.T) {
	clock := NewFakeClock(base)
	r := newRegistry()
	id := uuid.New()
	var fired []string

	r.arm(id, func() Timer { return clock.AfterFunc(time.Minute, func() { fired = append(fired, "first") }) })
	r.arm(id, func() Timer { return clock.AfterFunc(2*time.Minute, func() { fired = append(fired, "second") }) })

	assert.Equal(t, 1, r.len())
	assert.Equal(t, 1, clock.Live())

	clock.Advance(5 * time.Minute)
	assert.Equal(t, []string{"second"}, fired)
}

func TestRegistryDisarm(t *testing.T) {
	clock := NewFakeClock(base)
	r := newRegistry()
	id := uuid.New()
	called := false

	r.arm(id, func() Timer { return clock.AfterFunc(time.Second, func() { called = true }) })
	assert.True(t, r.has(id))
	assert.True(t, r.disarm(id))
	assert.False(t, r.disarm(id))
	assert.False(t, r.has(id))

	clock.Advance(time.Minute)
	assert.False(t, called)
}

func TestRegistryStopAll(t *testing.T) {
	clock := NewFakeClock(base)
	r := newRegistry()
	for i := 0; i < 3; i++ {
		r.arm(uuid.New(), func() Timer { return clock.AfterFunc(time.Hour, func() {}) })
	}

	r.stopAll()
	assert.Zero(t, r.len())
	assert.Zero(t, clock.Live())
}

func TestFakeClockRunsTimersInDueOrder(t *testing.T) {
	clock := NewFakeClock(base)
	var seen []time.Time

	clock.AfterFunc(3*time.Second, func() { seen = append(seen, clock.Now()) })
	clock.AfterFunc(time.Second, func() { seen = append(seen, clock.Now()) })
	clock.AfterFunc(time.Second, func() {
		// Timers armed from a callback still fire within the same Advance.
		clock.AfterFunc(time.Second, func() { seen = append(seen, clock.Now()) })
	})

	clock.Advance(10 * time.Second)
	assert.Equal(t, []time.Time{
		base.Add(time.Second),
		base.Add(2 * time.Second),
		base.Add(3 * time.Second),
	}, seen)
	assert.Equal(t, base.Add(10*time.Second), clock.Now())
}
