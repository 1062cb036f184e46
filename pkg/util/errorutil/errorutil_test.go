package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("decide: %w", NewAlreadyDecided("approved"))

	assert.True(t, errors.Is(err, NewAlreadyDecided("declined")))
	assert.False(t, errors.Is(err, NewForbidden("no")))
	assert.True(t, HasCode(err, CodeAlreadyDecided))
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("connection reset")
	de := ToDomainError(cause)

	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, true, de.Details["retryable"])
	assert.ErrorIs(t, de, cause)
	assert.Nil(t, ToDomainError(nil))
}

func TestInsufficientBalanceDetails(t *testing.T) {
	de := ToDomainError(NewInsufficientBalance(6, 4))

	assert.Equal(t, http.StatusUnprocessableEntity, de.HTTPStatus)
	assert.Equal(t, map[string]any{"requested": 6, "available": 4}, de.Details)
}
