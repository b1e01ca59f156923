// Package serializer provides the single-writer token that guards store
// mutations. One Serializer is shared by everything writing to the same
// store connection.
package serializer

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Serializer admits one holder at a time. Waiters are served in arrival
// order; the token is handed directly to the next waiter on release.
type Serializer struct {
	mu      sync.Mutex
	held    bool
	waiters list.List // of chan struct{}

	commits atomic.Int64
}

func New() *Serializer {
	return &Serializer{}
}

// Acquire blocks until the token is held by the caller or ctx is done.
func (s *Serializer) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if !s.held {
		s.held = true
		s.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	elem := s.waiters.PushBack(ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	select {
	case <-ready:
		// handed over while we were giving up; pass it on
		s.mu.Unlock()
		s.Release()
	default:
		s.waiters.Remove(elem)
		s.mu.Unlock()
	}
	return ctx.Err()
}

// Release passes the token to the oldest waiter, or frees it.
func (s *Serializer) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held {
		panic("serializer: release of unheld token")
	}
	front := s.waiters.Front()
	if front == nil {
		s.held = false
		return
	}
	s.waiters.Remove(front)
	close(front.Value.(chan struct{}))
}

// Do runs op while holding the token. The token is released on every exit
// path, including a panic in op.
func (s *Serializer) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer s.Release()
	err := op(ctx)
	if err == nil {
		s.commits.Add(1)
	}
	return err
}

// Run is Do for operations producing a value.
func Run[T any](ctx context.Context, s *Serializer, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Waiting returns the number of queued waiters.
func (s *Serializer) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}

// Commits returns how many operations completed without error.
func (s *Serializer) Commits() int64 {
	return s.commits.Load()
}
