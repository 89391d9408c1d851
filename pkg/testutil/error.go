package testutil

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCause verifies that err wraps the provided sentinel.
func AssertErrorCause(t *testing.T, err error, cause error) {
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause), "expected %v to wrap %v", err, cause)
}
