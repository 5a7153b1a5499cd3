package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusBadRequest, apperrors.ErrValidation},
		{http.StatusUnprocessableEntity, apperrors.ErrValidation},
		{http.StatusUnauthorized, apperrors.ErrAuthentication},
		{http.StatusForbidden, apperrors.ErrAuthentication},
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusInternalServerError, apperrors.ErrServer},
		{http.StatusBadGateway, apperrors.ErrServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := apperrors.FromStatus(tt.status, "reason")
			require.ErrorIs(t, err, tt.kind)
			require.Equal(t, tt.status, err.StatusCode)
		})
	}
}

func TestUserMessage(t *testing.T) {
	t.Run("authentication reason is shown", func(t *testing.T) {
		err := apperrors.Authentication("Invalid credentials")
		require.Equal(t, "Invalid credentials", apperrors.UserMessage(err))
	})

	t.Run("kind used when message empty", func(t *testing.T) {
		err := apperrors.New(apperrors.ErrConflict, "")
		require.Equal(t, "Conflict", apperrors.UserMessage(err))
	})

	t.Run("network collapses to generic", func(t *testing.T) {
		err := apperrors.Network(stderrors.New("dial tcp: refused"))
		require.Equal(t, apperrors.GenericRetryMessage, apperrors.UserMessage(err))
	})

	t.Run("server message hidden", func(t *testing.T) {
		err := apperrors.FromStatus(http.StatusInternalServerError, "stack trace here")
		require.Equal(t, apperrors.GenericRetryMessage, apperrors.UserMessage(err))
	})

	t.Run("unknown error is generic", func(t *testing.T) {
		require.Equal(t, apperrors.GenericRetryMessage, apperrors.UserMessage(stderrors.New("boom")))
	})

	t.Run("nil", func(t *testing.T) {
		require.Empty(t, apperrors.UserMessage(nil))
	})
}

func TestError_UnwrapCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := apperrors.Storage(cause)

	require.ErrorIs(t, err, apperrors.ErrStorage)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk full")
	require.False(t, apperrors.IsRetryable(err))
	require.True(t, apperrors.IsRetryable(apperrors.Network(cause)))
}
