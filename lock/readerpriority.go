package lock

import (
	"fmt"
	"sync"
)

// ReaderPriorityLock is an RWLocker in which a reader defers only to an
// active writer, never to a waiting one. Writers wait for a full reader
// drain, so overlapping readers can hold a writer off indefinitely; that
// starvation is the documented trade-off of this policy, not a bug.
type ReaderPriorityLock struct {
	mu        sync.Mutex // monitor guarding all fields below
	readersOK *sync.Cond // readers park here while a writer is active
	writersOK *sync.Cond // writers park here waiting for a full drain

	activeReaders int
	writerActive  bool
}

var _ RWLocker = (*ReaderPriorityLock)(nil)

// NewReaderPriorityLock creates an unlocked ReaderPriorityLock.
func NewReaderPriorityLock() *ReaderPriorityLock {
	l := &ReaderPriorityLock{}
	l.readersOK = sync.NewCond(&l.mu)
	l.writersOK = sync.NewCond(&l.mu)
	return l
}

// AcquireRead returns as soon as no writer is active. Waiting writers
// are not consulted.
func (l *ReaderPriorityLock) AcquireRead() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.writerActive {
		l.readersOK.Wait()
	}
	l.activeReaders++
	return nil
}

// ReleaseRead ends a shared access. The last reader out wakes every
// writer-waiter; at most one proceeds, the rest re-check and re-wait.
func (l *ReaderPriorityLock) ReleaseRead() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.activeReaders == 0 {
		return fmt.Errorf("release read: %w", ErrProtocol)
	}
	l.activeReaders--
	if l.activeReaders == 0 {
		l.writersOK.Broadcast()
	}
	return nil
}

// AcquireWrite blocks until no reader and no other writer holds the lock.
func (l *ReaderPriorityLock) AcquireWrite() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.activeReaders > 0 || l.writerActive {
		l.writersOK.Wait()
	}
	l.writerActive = true
	return nil
}

// ReleaseWrite ends the exclusive access and wakes all waiters of both
// kinds, since any of them may now be eligible.
func (l *ReaderPriorityLock) ReleaseWrite() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.writerActive {
		return fmt.Errorf("release write: %w", ErrProtocol)
	}
	l.writerActive = false
	l.readersOK.Broadcast()
	l.writersOK.Broadcast()
	return nil
}
