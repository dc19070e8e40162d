package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthTicker_BroadcastsOnEachTick(t *testing.T) {
	pub := &recordingPublisher{}
	clock := clockwork.NewFakeClock()
	o := New(pub, clock, time.Second, 10, 5, nil)
	ticker := NewHealthTicker(o, pub, 5*time.Second, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker.Run(ctx)
	}()

	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)
	waitForHealths(t, pub, 1)

	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)
	waitForHealths(t, pub, 2)

	pub.mu.Lock()
	health := pub.healths[0]
	pub.mu.Unlock()
	assert.Equal(t, 0, health.ActiveIncidents)
	assert.Equal(t, 5, health.AgentsAvailable)
	assert.InDelta(t, 1.0, health.ProcessingCapacity, 1e-9)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop after context cancellation")
	}
}

func TestHealthTicker_NoBroadcastBeforeInterval(t *testing.T) {
	pub := &recordingPublisher{}
	clock := clockwork.NewFakeClock()
	o := New(pub, clock, time.Second, 10, 5, nil)
	ticker := NewHealthTicker(o, pub, 5*time.Second, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ticker.Run(ctx)

	clock.BlockUntil(1)
	clock.Advance(4 * time.Second)

	time.Sleep(10 * time.Millisecond)
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Empty(t, pub.healths)
}

func waitForHealths(t *testing.T, pub *recordingPublisher, n int) {
	t.Helper()
	for range 200 {
		pub.mu.Lock()
		count := len(pub.healths)
		pub.mu.Unlock()
		if count >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.FailNow(t, "timed out waiting for health snapshots")
}
