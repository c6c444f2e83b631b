package aws

import (
	"errors"

	"github.com/aws/smithy-go"
)

// isAPIError reports whether err carries one of the given AWS API codes.
func isAPIError(err error, codes ...string) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	for _, code := range codes {
		if ae.ErrorCode() == code {
			return true
		}
	}
	return false
}

// isNotFound covers the not-found variants across the services used here.
func isNotFound(err error) bool {
	return isAPIError(err,
		"NotFound",
		"NoSuchBucket",
		"NoSuchEntity",
		"ResourceNotFoundException",
		"NotFoundException",
	)
}

// isAlreadyExists covers the create-level idempotence cases: a Create
// hitting one of these is read back and treated as success.
func isAlreadyExists(err error) bool {
	return isAPIError(err,
		"BucketAlreadyOwnedByYou",
		"EntityAlreadyExists",
		"ResourceInUseException",
		"ResourceConflictException",
		"ConflictException",
	)
}
