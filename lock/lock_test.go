package lock

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

// waitClosed fails the test unless ch is closed within waitTimeout.
func waitClosed(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatal(msg)
	}
}

// assertBlocked fails the test if ch is closed within a short grace
// period, i.e. the goroutine behind it was admitted when it should wait.
func assertBlocked(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal(msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func recvEvent(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(waitTimeout):
		t.Fatal("no admission within timeout")
		return ""
	}
}

func assertNoEvent(t *testing.T, events <-chan string, msg string) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("%s (got %q)", msg, e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestParsePolicy(t *testing.T) {
	for _, policy := range Policies() {
		got, err := ParsePolicy(string(policy))
		require.NoError(t, err)
		require.Equal(t, policy, got)
		require.NotEqual(t, "unknown", got.Description())
	}
	_, err := ParsePolicy("round-robin")
	require.Error(t, err)
}

func TestNewUnknownPolicy(t *testing.T) {
	_, err := New(Policy("lifo"))
	require.Error(t, err)
}

func TestMutualExclusion(t *testing.T) {
	for _, policy := range Policies() {
		t.Run(string(policy), func(t *testing.T) {
			l, err := New(policy)
			require.NoError(t, err)

			var readers, writers atomic.Int32
			var wg sync.WaitGroup
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						assert.NoError(t, l.AcquireWrite())
						assert.EqualValues(t, 1, writers.Add(1))
						assert.EqualValues(t, 0, readers.Load())
						writers.Add(-1)
						assert.NoError(t, l.ReleaseWrite())
					}
				}()
			}
			for r := 0; r < 8; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						assert.NoError(t, l.AcquireRead())
						readers.Add(1)
						assert.EqualValues(t, 0, writers.Load())
						readers.Add(-1)
						assert.NoError(t, l.ReleaseRead())
					}
				}()
			}
			wg.Wait()
		})
	}
}

func TestReadersDoNotBlockEachOther(t *testing.T) {
	for _, policy := range Policies() {
		t.Run(string(policy), func(t *testing.T) {
			l, err := New(policy)
			require.NoError(t, err)

			const n = 16
			var inside sync.WaitGroup
			inside.Add(n)
			done := make(chan struct{})
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, l.AcquireRead())
					inside.Done()
					inside.Wait() // every reader must be inside at once
					assert.NoError(t, l.ReleaseRead())
				}()
			}
			go func() { wg.Wait(); close(done) }()
			waitClosed(t, done, "readers blocked each other")
		})
	}
}

func TestNoMissedWakeup(t *testing.T) {
	for _, policy := range Policies() {
		t.Run(string(policy), func(t *testing.T) {
			l, err := New(policy)
			require.NoError(t, err)
			require.NoError(t, l.AcquireRead())

			writerIn := make(chan struct{})
			go func() {
				assert.NoError(t, l.AcquireWrite())
				close(writerIn)
				assert.NoError(t, l.ReleaseWrite())
			}()

			// Give the writer a moment to park; the release below must
			// reach it whether it is already waiting or not.
			time.Sleep(20 * time.Millisecond)
			require.NoError(t, l.ReleaseRead())
			waitClosed(t, writerIn, "writer missed the wake-up from the last reader")
		})
	}
}

func TestReleaseWithoutAcquire(t *testing.T) {
	for _, policy := range Policies() {
		t.Run(string(policy), func(t *testing.T) {
			l, err := New(policy)
			require.NoError(t, err)

			require.ErrorIs(t, l.ReleaseRead(), ErrProtocol)
			require.ErrorIs(t, l.ReleaseWrite(), ErrProtocol)

			// The failed releases must not have corrupted anything.
			require.NoError(t, l.AcquireWrite())
			require.ErrorIs(t, l.ReleaseRead(), ErrProtocol) // wrong kind
			require.NoError(t, l.ReleaseWrite())
			require.ErrorIs(t, l.ReleaseWrite(), ErrProtocol) // double release

			require.NoError(t, l.AcquireRead())
			require.NoError(t, l.ReleaseRead())
			require.ErrorIs(t, l.ReleaseRead(), ErrProtocol)
		})
	}
}

func TestWithReadWithWrite(t *testing.T) {
	for _, policy := range Policies() {
		t.Run(string(policy), func(t *testing.T) {
			l, err := New(policy)
			require.NoError(t, err)

			ran := false
			require.NoError(t, WithRead(l, func() error {
				ran = true
				return nil
			}))
			require.True(t, ran)

			boom := errors.New("boom")
			require.ErrorIs(t, WithWrite(l, func() error { return boom }), boom)

			// Both scoped calls above must have released: a plain write
			// acquisition succeeds immediately.
			require.NoError(t, l.AcquireWrite())
			require.NoError(t, l.ReleaseWrite())
		})
	}
}

func TestWithWriteReleasesOnPanic(t *testing.T) {
	for _, policy := range Policies() {
		t.Run(string(policy), func(t *testing.T) {
			l, err := New(policy)
			require.NoError(t, err)

			require.Panics(t, func() {
				_ = WithWrite(l, func() error { panic("boom") })
			})
			require.NoError(t, l.AcquireWrite())
			require.NoError(t, l.ReleaseWrite())

			require.Panics(t, func() {
				_ = WithRead(l, func() error { panic("boom") })
			})
			require.NoError(t, l.AcquireWrite())
			require.NoError(t, l.ReleaseWrite())
		})
	}
}
