package lock

import (
	"fmt"
	"sync"
)

// WriterPriorityLock is an RWLocker in which a writer registers intent
// before waiting, and new readers are held back while any writer is
// active or waiting. A writer is therefore admitted no later than when
// the currently active readers finish; continuously arriving writers can
// hold readers off indefinitely, which is the documented trade-off of
// this policy.
type WriterPriorityLock struct {
	mu        sync.Mutex // monitor guarding all fields below
	readersOK *sync.Cond
	writersOK *sync.Cond

	activeReaders int
	writerActive  bool
	writerWaiting int // writers that registered intent but are not active yet
}

var _ RWLocker = (*WriterPriorityLock)(nil)

// NewWriterPriorityLock creates an unlocked WriterPriorityLock.
func NewWriterPriorityLock() *WriterPriorityLock {
	l := &WriterPriorityLock{}
	l.readersOK = sync.NewCond(&l.mu)
	l.writersOK = sync.NewCond(&l.mu)
	return l
}

// AcquireRead blocks while a writer is active or waiting.
func (l *WriterPriorityLock) AcquireRead() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.writerActive || l.writerWaiting > 0 {
		l.readersOK.Wait()
	}
	l.activeReaders++
	return nil
}

// ReleaseRead ends a shared access. The last reader out hands off to
// exactly one waiting writer; readers are never woken here, since a
// waiting writer outranks any reader this release could unblock.
func (l *WriterPriorityLock) ReleaseRead() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.activeReaders == 0 {
		return fmt.Errorf("release read: %w", ErrProtocol)
	}
	l.activeReaders--
	if l.activeReaders == 0 && l.writerWaiting > 0 {
		l.writersOK.Signal()
	}
	return nil
}

// AcquireWrite registers intent first, which shuts out new readers, then
// waits for the active readers and any active writer to finish.
func (l *WriterPriorityLock) AcquireWrite() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writerWaiting++
	for l.activeReaders > 0 || l.writerActive {
		l.writersOK.Wait()
	}
	l.writerWaiting--
	l.writerActive = true
	return nil
}

// ReleaseWrite hands off to one waiting writer if any, preserving writer
// priority; otherwise every blocked reader is admitted as a batch.
func (l *WriterPriorityLock) ReleaseWrite() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.writerActive {
		return fmt.Errorf("release write: %w", ErrProtocol)
	}
	l.writerActive = false
	if l.writerWaiting > 0 {
		l.writersOK.Signal()
	} else {
		l.readersOK.Broadcast()
	}
	return nil
}
