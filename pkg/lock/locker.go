// pkg/lock/locker.go
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrTimeout is returned when exclusive access could not be obtained in time.
var ErrTimeout = errors.New("lock: acquisition timed out")

// Release gives back everything obtained by one Acquire call. It is safe to call more than once.
type Release func()

// Locker serializes work per account id.
type Locker interface {
	// Acquire blocks until every id is held exclusively by the caller.
	// Ids are taken in ascending order so overlapping callers cannot deadlock.
	Acquire(ctx context.Context, ids ...int64) (Release, error)
}

// orderedUnique returns ids sorted ascending with duplicates removed.
func orderedUnique(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}

// waitError converts a finished context into the error Acquire reports.
func waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
