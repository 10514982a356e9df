// pkg/lock/local.go
package lock

import (
	"context"
	"sync"
	"time"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process Locker: one single-token semaphore per account id.
// Semaphores are created on demand and dropped once nobody holds or waits on them.
type LocalLocker struct {
	mu      sync.Mutex
	slots   map[int64]*slot
	timeout time.Duration
}

// NewLocalLocker creates a LocalLocker. A non-positive timeout waits as long as ctx allows.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{
		slots:   make(map[int64]*slot),
		timeout: timeout,
	}
}

func (l *LocalLocker) ref(id int64) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[id]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context, ids ...int64) (Release, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	ordered := orderedUnique(ids)
	held := make([]int64, 0, len(ordered))
	for _, id := range ordered {
		s := l.ref(id)
		select {
		case s.ch <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			l.unref(id)
			l.release(held)
			return nil, waitError(ctx)
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *LocalLocker) release(held []int64) {
	for i := len(held) - 1; i >= 0; i-- {
		id := held[i]
		l.mu.Lock()
		s := l.slots[id]
		l.mu.Unlock()
		<-s.ch
		l.unref(id)
	}
}

// Size reports how many account ids currently have a semaphore allocated.
func (l *LocalLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
