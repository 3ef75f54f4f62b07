package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordingSleeper_Records(t *testing.T) {
	s := NewRecordingSleeper()
	ctx := context.Background()

	assert.NoError(t, s.Sleep(ctx, time.Second))
	assert.NoError(t, s.Sleep(ctx, 0))
	assert.NoError(t, s.Sleep(ctx, 250*time.Millisecond))

	assert.Equal(t, []time.Duration{time.Second, 0, 250 * time.Millisecond}, s.Waits())
	assert.Equal(t, 1250*time.Millisecond, s.Total())

	s.Reset()
	assert.Empty(t, s.Waits())
}

func TestRecordingSleeper_Cancelled(t *testing.T) {
	s := NewRecordingSleeper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Sleep(ctx, time.Second), context.Canceled)
	assert.Empty(t, s.Waits())
}

func TestRecordingSleeper_Concurrent(t *testing.T) {
	s := NewRecordingSleeper()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = s.Sleep(context.Background(), time.Millisecond)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, s.Waits(), 100)
}

func TestFixedRunIDGenerator(t *testing.T) {
	gen := NewFixedRunIDGenerator("test-run-123")
	assert.Equal(t, "test-run-123", gen.Generate())
	assert.Equal(t, "test-run-123", gen.Generate())

	assert.Equal(t, "test-run-default", NewFixedRunIDGenerator("").Generate())
}
