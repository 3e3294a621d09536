package testfixtures

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	t.Parallel()

	clock := NewClock(time.Time{})
	assert.Equal(t, ReferenceTime(), clock.Now())

	tokyo := time.FixedZone("JST", 9*60*60)
	clock = NewClock(time.Date(2025, time.June, 1, 18, 0, 0, 0, tokyo))
	assert.Equal(t, time.UTC, clock.Now().Location())
	assert.Equal(t, time.Date(2025, time.June, 1, 10, 30, 0, 0, time.UTC), clock.Advance(90*time.Minute))

	start, end := clock.SyncWindow()
	assert.Equal(t, time.Date(2025, time.May, 2, 10, 30, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.August, 30, 10, 30, 0, 0, time.UTC), end)
}

func TestSequence(t *testing.T) {
	t.Parallel()

	events := NewSequence("evt")
	assert.Equal(t, "evt-1", events.Next())
	assert.Equal(t, "evt-2", events.Next())
	assert.Equal(t, "id-1", NewSequence("").Next())

	shared := NewSequence("act")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shared.Next()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, shared.Issued())
}
