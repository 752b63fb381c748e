package patterns

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("Gateway-trip", "test", BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.6,
	})

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}

	status := cb.Status()
	assert.Equal(t, "open", status.State)
	assert.Equal(t, 1, status.StateValue)
	assert.Equal(t, "Gateway-trip", status.Name)

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.False(t, called)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_PassesResult(t *testing.T) {
	cb := NewCircuitBreaker("Gateway-ok", "test", DefaultBreakerSettings)

	result, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", cb.State())
	assert.Equal(t, uint32(1), cb.Status().Requests)
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	b := NewBulkhead(1, 20*time.Millisecond, "terminal", "test")
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	assert.Equal(t, 1, b.InUse())
	assert.Equal(t, 1, b.Capacity())

	err := b.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrBulkheadFull)

	close(release)
	wg.Wait()

	assert.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, "terminal", b.GetName())
}

func TestBulkhead_HonoursContext(t *testing.T) {
	b := NewBulkhead(1, time.Second, "terminal-ctx", "test")
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatError(t *testing.T) {
	err := FormatError("Gateway", gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "Gateway")

	assert.ErrorIs(t, FormatError("Gateway", gobreaker.ErrTooManyRequests), ErrCircuitOpen)

	boom := errors.New("boom")
	assert.Same(t, boom, FormatError("Gateway", boom))
}
