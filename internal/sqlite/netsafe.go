package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout is returned by WithFileLock when the sidecar lock could not
// be acquired within the timeout. It is never silently treated as success.
var ErrLockTimeout = errors.New("sqlite: file lock timeout")

// Options selects the connection profile for a store.
type Options struct {
	// NetworkSafe configures the connection for a database file that may
	// live on unreliable storage such as a network share. It trades speed
	// for durability: rollback journal instead of WAL, full fsync, a
	// 30-second busy timeout, and a small bounded page cache.
	//
	// WAL must never be enabled on a network share: its shared-memory
	// index breaks under network filesystem semantics and corrupts the
	// database.
	NetworkSafe bool

	// ReadOnly skips schema setup on open. Use it when inspecting a
	// database this process does not own, such as a legacy shared file
	// being migrated; creating the merge-key index on foreign data could
	// fail or alter it.
	ReadOnly bool
}

// localPragmas is the profile for a per-machine database on local disk.
var localPragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA busy_timeout = 3000",
}

// networkPragmas is the profile for a database file on a network share.
// DELETE journal mode avoids WAL's shared memory; FULL synchronous guards
// against network media dropping late writes; the busy timeout is sized for
// network latency, not local-disk latency.
var networkPragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = DELETE",
	"PRAGMA synchronous = FULL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA busy_timeout = 30000",
	"PRAGMA cache_size = -2000",
}

// Retry parameters for RetryOnLocked.
const (
	retryMaxAttempts  = 5
	retryInitialDelay = 100 * time.Millisecond
	retryMaxDelay     = 5 * time.Second
)

// RetryOnLocked executes op, retrying with exponential backoff and jitter
// while the storage engine reports a locked or busy database. Any other
// failure, or exhaustion of retries, returns the last error unchanged.
//
// This is the shared wrapper for every write path; call sites must not
// hand-roll their own retry loops.
func RetryOnLocked(op func() error) error {
	delay := retryInitialDelay
	var lastErr error

	for attempt := 0; attempt <= retryMaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isLockedErr(lastErr) {
			return lastErr
		}
		if attempt == retryMaxAttempts {
			break
		}

		jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
		sleep := delay + jitter
		if sleep > retryMaxDelay {
			sleep = retryMaxDelay
		}
		time.Sleep(sleep)

		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}

	return lastErr
}

// isLockedErr reports whether err is a transient locked/busy condition worth
// retrying. modernc's driver surfaces SQLITE_BUSY and SQLITE_LOCKED with
// those words in the message, so matching on the text covers both without
// importing driver internals.
func isLockedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// WithFileLock runs fn while holding an OS-level advisory lock on a sidecar
// file next to path. Acquisition polls every 100ms up to timeout and fails
// with ErrLockTimeout; the lock is released on every exit path.
//
// This serializes access between processes on the same machine only. The
// design deliberately never relies on cross-machine locking: advisory locks
// are not trustworthy on network shares.
func WithFileLock(ctx context.Context, path string, timeout time.Duration, fn func() error) error {
	lock := flock.New(path + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrLockTimeout, path, timeout)
		}
		return fmt.Errorf("acquiring lock for %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s after %s", ErrLockTimeout, path, timeout)
	}
	defer lock.Unlock()

	return fn()
}
