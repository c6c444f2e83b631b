package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/groundwork-iac/groundwork/internal/logging"
)

// DefaultStaleLockTimeout is how old an advisory lock may be before it
// is considered abandoned and reclaimed.
const DefaultStaleLockTimeout = 10 * time.Minute

// StaleLockTimeout is the reclaim threshold used by Lock. Tunable via
// the --lock-timeout flag.
var StaleLockTimeout = DefaultStaleLockTimeout

// Lock acquires an advisory file lock on the state. A lock older than
// StaleLockTimeout is treated as abandoned and reclaimed with a logged
// warning. The lock is scoped: callers release it via Unlock even on
// error paths.
func (m *Manager) Lock() error {
	lockPath := m.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) > StaleLockTimeout {
			logging.Warn("reclaiming stale state lock", "lock", lockPath, "age", time.Since(info.ModTime()).Round(time.Second))
			os.Remove(lockPath)
		} else {
			holder, _ := os.ReadFile(lockPath)
			return &LockError{Path: lockPath, Holder: string(holder)}
		}
	}

	// O_EXCL closes the stat/create race: whoever creates the file wins.
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := os.ReadFile(lockPath)
			return &LockError{Path: lockPath, Holder: string(holder)}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "pid=%d time=%s", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return nil
}

// LockWithRetry retries Lock with linear backoff until ctx expires.
func (m *Manager) LockWithRetry(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	for {
		err := m.Lock()
		if err == nil {
			return nil
		}
		if _, isLock := err.(*LockError); !isLock {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for state lock: %w", err)
		case <-time.After(interval):
		}
	}
}

// Unlock releases the state lock.
func (m *Manager) Unlock() error {
	lockPath := m.lockPath()
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (m *Manager) lockPath() string {
	return m.path + ".lock"
}
