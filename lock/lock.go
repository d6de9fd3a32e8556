// Package lock provides reader-writer mutual exclusion under three
// admission policies: reader-priority, writer-priority, and fair (FIFO).
// All variants share the RWLocker contract and are built on a single
// monitor mutex with condition variables; the monitor guards only the
// lock's bookkeeping, never the caller's critical section.
package lock

import (
	"errors"
	"fmt"
)

// Policy selects the admission policy of a lock created by New.
type Policy string

const (
	// ReaderPriority admits a reader whenever no writer is active; waiting
	// writers are ignored. A continuous stream of overlapping readers can
	// delay a writer indefinitely.
	ReaderPriority Policy = "reader-priority"
	// WriterPriority blocks new readers as soon as any writer is waiting,
	// bounding writer wait time. Continuously arriving writers can delay
	// readers indefinitely.
	WriterPriority Policy = "writer-priority"
	// Fair admits requests in arrival order. Consecutive queued readers
	// with no writer between them are admitted as one batch.
	Fair Policy = "fair"
)

// Policies lists all supported policies.
func Policies() []Policy {
	return []Policy{ReaderPriority, WriterPriority, Fair}
}

// ParsePolicy converts a user-supplied string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case ReaderPriority, WriterPriority, Fair:
		return p, nil
	default:
		return "", fmt.Errorf("unknown policy %q", s)
	}
}

// Description returns a one-line summary of the policy's trade-off.
func (p Policy) Description() string {
	switch p {
	case ReaderPriority:
		return "readers never wait for waiting writers; writers may starve"
	case WriterPriority:
		return "a waiting writer blocks all new readers; readers may starve"
	case Fair:
		return "strict arrival order; adjacent readers are admitted together"
	default:
		return "unknown"
	}
}

var (
	// ErrProtocol reports a release without a matching acquire. It always
	// indicates caller misuse; the lock state is left unchanged.
	ErrProtocol = errors.New("release without matching acquire")
	// ErrQueueFull reports that a bounded fair lock already has the
	// maximum number of queued waiters.
	ErrQueueFull = errors.New("waiter queue is full")
)

// RWLocker is the capability contract shared by all lock variants: any
// number of concurrent readers, or a single writer, never both.
//
// Acquire calls are not abortable once issued; there is no context or
// timeout support and waiting ends only when the policy's predicate
// holds. Acquisition is not reentrant, and there is no upgrade path
// between read and write access.
type RWLocker interface {
	// AcquireRead blocks until shared access is granted per the policy.
	AcquireRead() error
	// ReleaseRead ends a shared access and applies the policy's wake-up
	// rule. Returns ErrProtocol if no reader currently holds the lock.
	ReleaseRead() error
	// AcquireWrite blocks until exclusive access is granted.
	AcquireWrite() error
	// ReleaseWrite ends an exclusive access and applies the policy's
	// wake-up rule. Returns ErrProtocol if no writer holds the lock.
	ReleaseWrite() error
}

// Option configures a lock created by New or NewFairLock.
type Option func(*options)

type options struct {
	maxWaiters int
}

// WithMaxWaiters bounds the number of queued waiters of a Fair lock;
// acquires beyond the bound fail with ErrQueueFull instead of queueing.
// Zero means unbounded. Other policies ignore this option.
func WithMaxWaiters(n int) Option {
	return func(o *options) { o.maxWaiters = n }
}

// New creates an unlocked lock implementing the given policy.
func New(policy Policy, opts ...Option) (RWLocker, error) {
	switch policy {
	case ReaderPriority:
		return NewReaderPriorityLock(), nil
	case WriterPriority:
		return NewWriterPriorityLock(), nil
	case Fair:
		return NewFairLock(opts...), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", policy)
	}
}

// WithRead runs fn while holding l for reading. The release is performed
// on every exit path, including a panic inside fn; fn's error is joined
// with any release error.
func WithRead(l RWLocker, fn func() error) (err error) {
	if aerr := l.AcquireRead(); aerr != nil {
		return fmt.Errorf("acquire read: %w", aerr)
	}
	defer func() {
		if rerr := l.ReleaseRead(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release read: %w", rerr))
		}
	}()
	return fn()
}

// WithWrite runs fn while holding l for writing. Release semantics match
// WithRead.
func WithWrite(l RWLocker, fn func() error) (err error) {
	if aerr := l.AcquireWrite(); aerr != nil {
		return fmt.Errorf("acquire write: %w", aerr)
	}
	defer func() {
		if rerr := l.ReleaseWrite(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release write: %w", rerr))
		}
	}()
	return fn()
}
