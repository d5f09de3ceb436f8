package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{429, ErrorTypeRateLimit, true},
		{500, ErrorTypeServer, true},
		{503, ErrorTypeServer, true},
		{408, ErrorTypeTimeout, true},
		{401, ErrorTypeClient, false},
		{404, ErrorTypeClient, false},
		{302, ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ClassifyHTTPError(tt.status)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.status, err.StatusCode)
		})
	}
}

func TestNewSessionError(t *testing.T) {
	err := NewSessionError(403)
	assert.Equal(t, ErrorTypeSession, TypeOf(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "session error (status 403): session rejected", err.Error())
}

func TestClassifyTransportError(t *testing.T) {
	assert.Equal(t, ErrorTypeTimeout, ClassifyTransportError(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeNetwork, ClassifyTransportError(errors.New("connection refused")).Type)

	inner := NewValidationError("bad")
	assert.Same(t, inner, ClassifyTransportError(fmt.Errorf("wrapped: %w", inner)))
}

func TestNoDataError(t *testing.T) {
	err := NewNoDataError("X.NS")
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, ErrorTypeNoData, TypeOf(err))
	assert.Equal(t, "no_data error: no data for X.NS", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(NewServerError(502)))
	assert.False(t, IsRetryable(fmt.Errorf("ctx: %w", NewValidationError("bad"))))
}
