package dtreerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidationError(t *testing.T) {
	err := &ValidationError{Kind: ValidationInvalidState, Reason: "negative balance"}
	assert.True(t, IsValidationError(err))
	wrapped := fmt.Errorf("wrap: %w", err)
	assert.True(t, IsValidationError(wrapped), "expected IsValidationError to see through fmt.Errorf wrapping")
	assert.False(t, IsValidationError(errors.New("plain")))
}

func TestIsNonDeterministicOperation(t *testing.T) {
	nd := &ProcessingError{Kind: ProcessingNonDeterministicOp, Operation: "system_time"}
	assert.True(t, IsNonDeterministicOperation(nd))
	other := &ProcessingError{Kind: ProcessingTransactionFailed}
	assert.False(t, IsNonDeterministicOperation(other))
}

func TestIsCheckpointError(t *testing.T) {
	cp := &StateError{Kind: StateCheckpointError, Reason: "hash mismatch"}
	assert.True(t, IsCheckpointError(cp))
	other := &StateError{Kind: StateTransitionFailed}
	assert.False(t, IsCheckpointError(other))
}

func TestProcessingErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &ProcessingError{Kind: ProcessingWithContext, Reason: "enriched", Wrapped: cause}
	assert.ErrorIs(t, err, cause, "expected errors.Is to see through ProcessingError.Unwrap")
}

func TestErrorContextWithInfo(t *testing.T) {
	var ctx *ErrorContext
	ctx = ctx.WithInfo("k1", "v1")
	assert.Equal(t, []KV{{Key: "k1", Value: "v1"}}, ctx.Info)

	next := ctx.WithInfo("k2", "v2")
	assert.Len(t, ctx.Info, 1, "WithInfo must not mutate the receiver")
	assert.Len(t, next.Info, 2)
}
