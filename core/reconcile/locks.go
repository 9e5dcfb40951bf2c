package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// projectLocks serializes runs of the same project. Runs of different
// projects never wait on each other. A project's entry lives only while a
// run holds or waits for it.
type projectLocks struct {
	mu    sync.Mutex
	locks map[string]*projectLock
}

type projectLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newProjectLocks() *projectLocks {
	return &projectLocks{locks: make(map[string]*projectLock)}
}

// acquire blocks until the project is free, ctx is done or timeout elapses.
func (l *projectLocks) acquire(ctx context.Context, project string, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	pl, ok := l.locks[project]
	if !ok {
		pl = &projectLock{sem: semaphore.NewWeighted(1)}
		l.locks[project] = pl
	}
	pl.refs++
	l.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := pl.sem.Acquire(ctx, 1); err != nil {
		l.unref(project, pl)
		return nil, fmt.Errorf("failed to acquire lock for project %s: %w", project, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			pl.sem.Release(1)
			l.unref(project, pl)
		})
	}, nil
}

func (l *projectLocks) unref(project string, pl *projectLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, project)
	}
}

// size returns the number of projects currently held or waited for.
func (l *projectLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
