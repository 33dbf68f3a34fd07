package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{NewValidationError("reason_code", "unknown"), ErrValidation},
		{&StaleVersionError{Kind: KindWorkOrder, ID: 17, Reviewed: 2, Live: 3}, ErrStaleVersion},
		{&NotFoundError{Kind: KindMachine, ID: 9}, ErrNotFound},
		{&DuplicateSignatureError{TargetType: KindWorkOrder, TargetID: 17}, ErrDuplicateSignature},
		{&AtomicityError{Op: "upsert", Err: errors.New("disk I/O error")}, ErrAtomicity},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("call: %w", tc.err)
		assert.ErrorIs(t, wrapped, tc.sentinel, tc.err.Error())
	}
}

func TestAtomicityErrorKeepsCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := &AtomicityError{Op: "sign", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable())
}

func TestStaleVersionMessage(t *testing.T) {
	err := &StaleVersionError{Kind: KindWorkOrder, ID: 17, Reviewed: 2, Live: 3}
	assert.Contains(t, err.Error(), "version 2")
	assert.Contains(t, err.Error(), "live version is 3")
}
