package schedule

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceLocks_AcquireAndRelease(t *testing.T) {
	locks := NewResourceLocks()

	release, err := locks.Acquire([]string{"crew-1", "vehicle-2"}, 100*time.Millisecond)
	require.NoError(t, err)
	release()

	// Released locks can be taken again immediately.
	release, err = locks.Acquire([]string{"crew-1", "vehicle-2"}, 100*time.Millisecond)
	require.NoError(t, err)
	release()
}

func TestResourceLocks_TimeoutOnHeldLock(t *testing.T) {
	locks := NewResourceLocks()

	release, err := locks.Acquire([]string{"crew-1"}, 100*time.Millisecond)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = locks.Acquire([]string{"crew-1"}, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "acquire should have waited for the full timeout")
}

func TestResourceLocks_TimeoutReleasesPartialSet(t *testing.T) {
	locks := NewResourceLocks()

	// Hold crew-2 so that an acquire of {crew-1, crew-2} takes crew-1 and
	// then times out on crew-2.
	release, err := locks.Acquire([]string{"crew-2"}, 100*time.Millisecond)
	require.NoError(t, err)

	_, err = locks.Acquire([]string{"crew-1", "crew-2"}, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrLockTimeout)

	// crew-1 must have been put back on failure.
	releaseOne, err := locks.Acquire([]string{"crew-1"}, 50*time.Millisecond)
	require.NoError(t, err)
	releaseOne()
	release()
}

func TestResourceLocks_OverlappingSetsDoNotDeadlock(t *testing.T) {
	locks := NewResourceLocks()

	// Two goroutines repeatedly lock overlapping sets presented in opposite
	// order. Sorted acquisition keeps this deadlock-free.
	var wg sync.WaitGroup
	for _, keys := range [][]string{
		{"crew-1", "crew-2", "vehicle-1"},
		{"vehicle-1", "crew-2", "crew-1"},
	} {
		wg.Add(1)
		go func(keys []string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				release, err := locks.Acquire(keys, 2*time.Second)
				assert.NoError(t, err)
				release()
			}
		}(keys)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("lock workers did not finish; likely deadlocked")
	}
}

func TestResourceLocks_DuplicateAndEmptyKeys(t *testing.T) {
	locks := NewResourceLocks()

	release, err := locks.Acquire([]string{"crew-1", "", "crew-1"}, 100*time.Millisecond)
	require.NoError(t, err)
	defer release()

	// A duplicated key must be locked once, not self-deadlock.
	assert.Equal(t, []string{"crew-1"}, dedupeSorted([]string{"crew-1", "", "crew-1"}))
}
