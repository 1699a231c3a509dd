package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LocalLocker serializes commits per event inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

// NewLocalLocker returns an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[uuid.UUID]struct{})}
}

func newLocalLocker() EventLocker {
	return NewLocalLocker()
}

// Lock marks eventID as busy, or fails with ErrImportInProgress.
func (l *LocalLocker) Lock(_ context.Context, eventID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[eventID]; busy {
		return nil, ErrImportInProgress
	}
	l.held[eventID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, eventID)
			l.mu.Unlock()
		})
	}, nil
}
