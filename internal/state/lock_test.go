package state

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_AcquireAndRelease(t *testing.T) {
	mgr := testManager(t)

	require.NoError(t, mgr.Lock())
	require.NoError(t, mgr.Unlock())

	// Releasable again after unlock.
	require.NoError(t, mgr.Lock())
	require.NoError(t, mgr.Unlock())
}

func TestLock_ContentionReportsHolder(t *testing.T) {
	mgr := testManager(t)

	require.NoError(t, mgr.Lock())
	defer mgr.Unlock()

	err := mgr.Lock()
	require.Error(t, err)

	var lockErr *LockError
	require.ErrorAs(t, err, &lockErr)
	assert.Contains(t, lockErr.Holder, "pid=")
}

func TestLock_StaleLockIsReclaimed(t *testing.T) {
	mgr := testManager(t)

	require.NoError(t, mgr.Lock())

	// Backdate the lock beyond the stale threshold.
	stale := time.Now().Add(-2 * StaleLockTimeout)
	require.NoError(t, os.Chtimes(mgr.lockPath(), stale, stale))

	require.NoError(t, mgr.Lock())
	require.NoError(t, mgr.Unlock())
}

func TestLock_FreshLockIsNotReclaimed(t *testing.T) {
	mgr := testManager(t)

	require.NoError(t, mgr.Lock())
	defer mgr.Unlock()

	var lockErr *LockError
	require.ErrorAs(t, mgr.Lock(), &lockErr)
}

func TestUnlock_MissingLockIsNotAnError(t *testing.T) {
	mgr := testManager(t)
	assert.NoError(t, mgr.Unlock())
}

func TestLockWithRetry_AcquiresWhenReleased(t *testing.T) {
	mgr := testManager(t)
	require.NoError(t, mgr.Lock())

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- mgr.LockWithRetry(ctx, 10*time.Millisecond)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, mgr.Unlock())

	require.NoError(t, <-done)
	require.NoError(t, mgr.Unlock())
}

func TestLockWithRetry_TimesOut(t *testing.T) {
	mgr := testManager(t)
	require.NoError(t, mgr.Lock())
	defer mgr.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := mgr.LockWithRetry(ctx, 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out waiting for state lock")
}
