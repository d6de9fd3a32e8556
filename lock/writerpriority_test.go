package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writerRegistered polls until n writers have registered intent.
func writerRegistered(t *testing.T, l *WriterPriorityLock, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.writerWaiting == n
	}, waitTimeout, time.Millisecond)
}

// A reader arriving after a writer registered intent must wait until
// that writer completes, even though only readers hold the lock.
func TestWriterPriorityBlocksLateReaders(t *testing.T) {
	l := NewWriterPriorityLock()
	require.NoError(t, l.AcquireRead())

	writerIn := make(chan struct{})
	writerOut := make(chan struct{})
	release := make(chan struct{})
	go func() {
		assert.NoError(t, l.AcquireWrite())
		close(writerIn)
		<-release
		assert.NoError(t, l.ReleaseWrite())
		close(writerOut)
	}()
	writerRegistered(t, l, 1)

	readerIn := make(chan struct{})
	go func() {
		assert.NoError(t, l.AcquireRead())
		close(readerIn)
		assert.NoError(t, l.ReleaseRead())
	}()
	assertBlocked(t, readerIn, "reader admitted while a writer was waiting")
	assertBlocked(t, writerIn, "writer admitted while a reader was active")

	// Last reader out: the writer gets the targeted hand-off.
	require.NoError(t, l.ReleaseRead())
	waitClosed(t, writerIn, "writer not admitted after the last reader left")
	assertBlocked(t, readerIn, "reader admitted while the writer was active")

	close(release)
	waitClosed(t, writerOut, "writer did not release")
	waitClosed(t, readerIn, "reader not admitted after the writer released")
}

// Queued writers drain one after another before any waiting reader is
// admitted; the final writer release admits the readers as a batch.
func TestWriterPriorityWriterHandoff(t *testing.T) {
	l := NewWriterPriorityLock()
	require.NoError(t, l.AcquireWrite())

	events := make(chan string, 4)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.AcquireWrite())
			events <- "writer"
			assert.NoError(t, l.ReleaseWrite())
		}()
	}
	writerRegistered(t, l, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.AcquireRead())
			events <- "reader"
			assert.NoError(t, l.ReleaseRead())
		}()
	}

	require.NoError(t, l.ReleaseWrite())

	// Writers first, then the reader batch. Each worker reports its
	// admission before releasing, so the event order is the admission
	// order across kinds.
	got := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		got = append(got, recvEvent(t, events))
	}
	require.Equal(t, []string{"writer", "writer", "reader", "reader"}, got)
	wg.Wait()
}
