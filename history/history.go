// Package history persists simulation run reports to a flock-protected
// JSON file, so concurrent invocations of the CLI do not clobber each
// other's records.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/projecteru2/rwlock/types"
	"github.com/projecteru2/rwlock/utils"
)

const (
	// keepRuns bounds the history file: older runs are pruned on append.
	keepRuns = 50

	retryDelay = 100 * time.Millisecond
	fileName   = "history.json"
	lockName   = "history.lock"
)

// Store provides flock-protected read/modify/write access to the run
// history file. A fresh flock fd is taken on every acquisition so
// concurrent callers on the same Store properly block each other.
type Store struct {
	dir string
}

// New creates a Store rooted at dir. The directory is created lazily on
// first access.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Append records a finished run, pruning the history to the most recent
// keepRuns entries.
func (s *Store) Append(ctx context.Context, report *types.RunReport) error {
	return s.withLock(ctx, func() error {
		runs, err := s.load()
		if err != nil {
			return err
		}
		runs = append(runs, *report)
		if len(runs) > keepRuns {
			runs = runs[len(runs)-keepRuns:]
		}
		return utils.AtomicWriteJSON(filepath.Join(s.dir, fileName), types.RunHistory{Runs: runs})
	})
}

// List returns all recorded runs, oldest first.
func (s *Store) List(ctx context.Context) ([]types.RunReport, error) {
	var runs []types.RunReport
	err := s.withLock(ctx, func() error {
		var lerr error
		runs, lerr = s.load()
		return lerr
	})
	return runs, err
}

// load reads the history file; a missing file is an empty history.
func (s *Store) load() ([]types.RunReport, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, fileName)) //nolint:gosec // store-managed path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	var h types.RunHistory
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return h.Runs, nil
}

// withLock runs fn while holding the history flock.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("ensure history dir: %w", err)
	}
	fl := flock.New(filepath.Join(s.dir, lockName))
	ok, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("acquire history lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquire history lock: %w", ctx.Err())
	}
	defer fl.Unlock() //nolint:errcheck
	return fn()
}
