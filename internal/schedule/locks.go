package schedule

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrLockTimeout is returned when contended resource locks could not be
// acquired within the configured wait. The caller should retry the whole
// proposal; no partial effect has taken place.
var ErrLockTimeout = errors.New("timed out waiting for resource locks")

// ResourceLocks serializes proposals per resource. Each key owns a
// one-slot channel used as a mutex with a timed acquire. Lock sets are
// taken in sorted key order so two proposals touching overlapping resource
// sets can never deadlock.
type ResourceLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewResourceLocks creates an empty lock table.
func NewResourceLocks() *ResourceLocks {
	return &ResourceLocks{locks: make(map[string]chan struct{})}
}

func (l *ResourceLocks) get(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ch, ok := l.locks[key]; ok {
		return ch
	}
	ch := make(chan struct{}, 1)
	l.locks[key] = ch
	return ch
}

// Acquire takes every lock in keys (deduplicated, sorted) within wait.
// On success it returns a release function; on timeout it releases whatever
// it had taken and returns ErrLockTimeout.
func (l *ResourceLocks) Acquire(keys []string, wait time.Duration) (func(), error) {
	sorted := dedupeSorted(keys)
	deadline := time.Now().Add(wait)

	acquired := make([]chan struct{}, 0, len(sorted))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			<-acquired[i]
		}
	}

	for _, key := range sorted {
		ch := l.get(key)
		remaining := time.Until(deadline)
		if remaining <= 0 {
			select {
			case ch <- struct{}{}:
				acquired = append(acquired, ch)
				continue
			default:
				release()
				return nil, ErrLockTimeout
			}
		}

		timer := time.NewTimer(remaining)
		select {
		case ch <- struct{}{}:
			timer.Stop()
			acquired = append(acquired, ch)
		case <-timer.C:
			release()
			return nil, ErrLockTimeout
		}
	}
	return release, nil
}

func dedupeSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
