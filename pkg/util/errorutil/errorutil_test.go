package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToDomainError_PassesThroughWrapped(t *testing.T) {
	err := fmt.Errorf("close ticket: %w", NewForbidden("nope"))

	de := ToDomainError(err)
	assert.Equal(t, CodeForbidden, de.Code)
	assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
	assert.True(t, HasCode(err, CodeForbidden))
}

func TestToDomainError_UnknownBecomesInternal(t *testing.T) {
	cause := errors.New("connection reset")

	de := ToDomainError(cause)
	assert.Equal(t, CodeInternal, de.Code)
	assert.ErrorIs(t, de, cause)
	assert.Nil(t, ToDomainError(nil))
}

func TestNewCooldownCarriesRemaining(t *testing.T) {
	retry := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)

	de := ToDomainError(NewCooldown(retry, 2*time.Hour))
	assert.Equal(t, CodeCooldown, de.Code)
	assert.Equal(t, retry, de.Details["retry_at"])
	assert.Equal(t, 2*time.Hour, de.Details["remaining"])
}

func TestNewInternalErrorKeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("pq: deadlock detected")
	de := ToDomainError(NewInternalError("Failed to close ticket.", cause))

	assert.Equal(t, "Failed to close ticket.", de.Message)
	assert.ErrorIs(t, de, cause)
}
