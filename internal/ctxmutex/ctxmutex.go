// Package ctxmutex provides a mutex whose Lock honours context cancellation.
package ctxmutex

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// CtxMutex is a context aware mutex backed by a weighted semaphore of size 1.
type CtxMutex struct {
	sem *semaphore.Weighted
}

// New creates an unlocked CtxMutex
func New() *CtxMutex {
	return &CtxMutex{
		sem: semaphore.NewWeighted(1),
	}
}

// Lock blocks until the mutex is acquired or ctx is done.
// On cancellation the mutex is not held and ctx.Err() is returned.
func (m *CtxMutex) Lock(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

// Unlock releases the mutex
func (m *CtxMutex) Unlock() {
	m.sem.Release(1)
}
