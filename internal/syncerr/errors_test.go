package syncerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	tests := []struct {
		err    error
		target error
		name   string
		want   bool
	}{
		{
			name:   "transient matches sentinel",
			err:    Transient("transmit", errors.New("timeout")),
			target: ErrTransientNetwork,
			want:   true,
		},
		{
			name:   "wrapped permanent matches sentinel",
			err:    fmt.Errorf("op failed: %w", Permanent("transmit", 422, errors.New("bad qty"))),
			target: ErrPermanentRejection,
			want:   true,
		},
		{
			name:   "storage does not match transient",
			err:    Storage("commit", errors.New("disk full")),
			target: ErrTransientNetwork,
			want:   false,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			target: ErrStorageUnavailable,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := Permanent("transmit", 422, errors.New("qty must be >= 0"))
	assert.Equal(t, "transmit: permanent_rejection (status 422): qty must be >= 0", err.Error())

	assert.Equal(t, "conflict_blocked", ErrConflictBlocked.Error())
}

func TestKindOfAndRetryable(t *testing.T) {
	cause := errors.New("refused")
	wrapped := fmt.Errorf("drain: %w", Transient("fetch", cause))

	assert.Equal(t, KindTransientNetwork, KindOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	assert.Equal(t, Kind(""), KindOf(cause))
	assert.False(t, IsRetryable(Expired("transmit", cause)))
	assert.False(t, IsRetryable(cause))
}
