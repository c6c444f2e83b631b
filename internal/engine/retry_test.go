package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() *RetryPolicy {
	return &RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastPolicy(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("throttled, slow down")
		}
		return nil
	}, IsTransientError)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_PermanentErrorFailsFast(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastPolicy(), func() error {
		attempts++
		return errors.New("access denied")
	}, IsTransientError)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastPolicy(), func() error {
		attempts++
		return errors.New("service unavailable")
	}, IsTransientError)

	require.Error(t, err)
	assert.Equal(t, 4, attempts) // initial try plus three retries
	assert.Contains(t, err.Error(), "max retries")
}

func TestRetryWithBackoff_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, fastPolicy(), func() error {
		return errors.New("timeout talking to backend")
	}, IsTransientError)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
}

func TestIsTransientError_APICodes(t *testing.T) {
	throttle := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
	assert.True(t, IsTransientError(throttle))

	denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "no", Fault: smithy.FaultClient}
	assert.False(t, IsTransientError(denied))

	serverFault := &smithy.GenericAPIError{Code: "Whatever", Message: "oops", Fault: smithy.FaultServer}
	assert.True(t, IsTransientError(serverFault))
}

func TestIsTransientError_BackendError(t *testing.T) {
	transient := &BackendError{Resource: "null.a", Operation: "create", Transient: true, Err: errors.New("x")}
	assert.True(t, IsTransientError(transient))

	permanent := &BackendError{Resource: "null.a", Operation: "create", Err: errors.New("x")}
	assert.False(t, IsTransientError(permanent))
}

func TestIsTransientError_MessagePatterns(t *testing.T) {
	assert.True(t, IsTransientError(errors.New("connection reset by peer")))
	assert.True(t, IsTransientError(errors.New("dial tcp: i/o timeout")))
	assert.False(t, IsTransientError(errors.New("invalid parameter value")))
	assert.False(t, IsTransientError(nil))
}

func TestCalculateBackoff_StaysUnderCap(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := calculateBackoff(attempt, time.Second, 5*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}
