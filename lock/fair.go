package lock

import (
	"fmt"
	"sync"
)

type waiterKind uint8

const (
	kindReader waiterKind = iota
	kindWriter
)

// fairWaiter is one queued acquire request. Each waiter owns its own
// condition on the shared monitor, so a release can wake exactly the
// entries that now qualify: every reader of the leading run, or the one
// writer at the head.
type fairWaiter struct {
	kind  waiterKind
	ready *sync.Cond
}

// FairLock is an RWLocker that admits requests in arrival order. Every
// acquire takes a ticket in a single FIFO queue before it ever inspects
// the shared counters, fixing its position at arrival. Consecutive
// queued readers are admitted together since they do not conflict; a
// writer is admitted alone once it reaches the head and the lock drains.
//
// A reader group arriving after a queued writer stays blocked behind it
// even while the lock is only read-held, but readers already admitted
// are never retroactively blocked by a writer arriving mid-run.
type FairLock struct {
	mu sync.Mutex // monitor guarding all fields below

	queue      []*fairWaiter
	maxWaiters int // 0 means unbounded

	activeReaders int
	writerActive  bool
}

var _ RWLocker = (*FairLock)(nil)

// NewFairLock creates an unlocked FairLock.
func NewFairLock(opts ...Option) *FairLock {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &FairLock{maxWaiters: o.maxWaiters}
}

// AcquireRead takes a queue ticket and waits until no writer is active
// and no earlier-queued writer remains unadmitted. Returns ErrQueueFull
// if the lock was built with WithMaxWaiters and the queue is full.
func (l *FairLock) AcquireRead() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.enqueue(kindReader)
	if err != nil {
		return fmt.Errorf("acquire read: %w", err)
	}
	for !l.readerAdmissible(w) {
		w.ready.Wait()
	}
	l.dequeue(w)
	l.activeReaders++
	return nil
}

// ReleaseRead ends a shared access; the last reader out re-evaluates the
// head of the queue.
func (l *FairLock) ReleaseRead() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.activeReaders == 0 {
		return fmt.Errorf("release read: %w", ErrProtocol)
	}
	l.activeReaders--
	if l.activeReaders == 0 {
		l.wakeHead()
	}
	return nil
}

// AcquireWrite takes a queue ticket and waits until it reaches the head
// of the queue and the lock is idle.
func (l *FairLock) AcquireWrite() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.enqueue(kindWriter)
	if err != nil {
		return fmt.Errorf("acquire write: %w", err)
	}
	for !l.writerAdmissible(w) {
		w.ready.Wait()
	}
	l.dequeue(w)
	l.writerActive = true
	return nil
}

// ReleaseWrite ends the exclusive access and re-evaluates the head of
// the queue.
func (l *FairLock) ReleaseWrite() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.writerActive {
		return fmt.Errorf("release write: %w", ErrProtocol)
	}
	l.writerActive = false
	l.wakeHead()
	return nil
}

// enqueue appends a new waiter, enforcing the optional queue bound.
// Caller holds l.mu.
func (l *FairLock) enqueue(kind waiterKind) (*fairWaiter, error) {
	if l.maxWaiters > 0 && len(l.queue) >= l.maxWaiters {
		return nil, ErrQueueFull
	}
	w := &fairWaiter{kind: kind, ready: sync.NewCond(&l.mu)}
	l.queue = append(l.queue, w)
	return w, nil
}

// dequeue removes an admitted waiter. Readers of an admitted run are not
// necessarily at the head, so removal is by identity. Caller holds l.mu.
func (l *FairLock) dequeue(w *fairWaiter) {
	for i, e := range l.queue {
		if e == w {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

// readerAdmissible reports whether a queued reader may enter: no writer
// holds the lock and only readers are queued ahead of it. Caller holds
// l.mu.
func (l *FairLock) readerAdmissible(w *fairWaiter) bool {
	if l.writerActive {
		return false
	}
	for _, e := range l.queue {
		if e == w {
			return true
		}
		if e.kind == kindWriter {
			return false
		}
	}
	return false
}

// writerAdmissible reports whether a queued writer may enter: it is at
// the head of the queue and the lock is fully idle. Caller holds l.mu.
func (l *FairLock) writerAdmissible(w *fairWaiter) bool {
	return len(l.queue) > 0 && l.queue[0] == w &&
		!l.writerActive && l.activeReaders == 0
}

// wakeHead re-evaluates the new head after a release: a head writer gets
// a targeted wake once the lock is idle, a leading run of readers is
// woken together. Every woken waiter still re-checks its predicate
// before proceeding. Caller holds l.mu.
func (l *FairLock) wakeHead() {
	if len(l.queue) == 0 {
		return
	}
	if l.queue[0].kind == kindWriter {
		if !l.writerActive && l.activeReaders == 0 {
			l.queue[0].ready.Signal()
		}
		return
	}
	if l.writerActive {
		return
	}
	for _, e := range l.queue {
		if e.kind == kindWriter {
			break
		}
		e.ready.Signal()
	}
}
