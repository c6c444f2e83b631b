package aws

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "test"}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(apiErr("NoSuchBucket")))
	assert.True(t, isNotFound(apiErr("ResourceNotFoundException")))
	assert.True(t, isNotFound(apiErr("NoSuchEntity")))
	assert.False(t, isNotFound(apiErr("AccessDenied")))
	assert.False(t, isNotFound(errors.New("plain error")))
	assert.False(t, isNotFound(nil))
}

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, isAlreadyExists(apiErr("BucketAlreadyOwnedByYou")))
	assert.True(t, isAlreadyExists(apiErr("EntityAlreadyExists")))
	assert.True(t, isAlreadyExists(apiErr("ResourceConflictException")))
	assert.False(t, isAlreadyExists(apiErr("ValidationError")))
}

func TestIsAPIError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("create failed: %w", apiErr("ConflictException"))
	assert.True(t, isAlreadyExists(wrapped))
}
