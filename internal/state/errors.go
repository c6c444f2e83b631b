package state

import "fmt"

// LockError reports that the state lock is held elsewhere. It is
// retriable with backoff, fatal after the caller's timeout.
type LockError struct {
	Path   string
	Holder string
}

func (e *LockError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("state is locked by another process (%s, lock: %s)", e.Holder, e.Path)
	}
	return fmt.Sprintf("state is locked by another process (lock: %s)", e.Path)
}

// CorruptionError reports a malformed state document. It is fatal and
// requires manual intervention; state is never silently reset.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("state file %s is corrupt: %v (manual intervention required, state will not be reset)", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}
