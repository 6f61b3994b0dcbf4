package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{Invalid("BAD", "bad input"), http.StatusBadRequest},
		{NotFound("MISSING", "not found"), http.StatusNotFound},
		{Unauthorized("NOPE", "no"), http.StatusUnauthorized},
		{Forbidden("DENIED", "no"), http.StatusForbidden},
		{Conflict("DUP", "taken"), http.StatusConflict},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.Status(), tc.err.Code)
	}
}

func TestFromAndCodeOf(t *testing.T) {
	err := Forbidden("USER_BANNED", "account banned")
	assert.Equal(t, "USER_BANNED", CodeOf(err))
	assert.True(t, IsCode(err, "USER_BANNED"))
	assert.False(t, IsCode(err, "OTHER"))

	wrapped := fmt.Errorf("handling request: %w", err)
	assert.Equal(t, "USER_BANNED", CodeOf(wrapped))

	assert.Nil(t, From(errors.New("plain")))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.Empty(t, CodeOf(nil))
}

func TestInternalKeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal(cause)
	assert.Equal(t, "INTERNAL", err.Code)
	assert.NotContains(t, err.Message, "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "INVALID_KEY: invalid license key", Unauthorized("INVALID_KEY", "invalid license key").Error())
	assert.Equal(t, "just text", (&Error{Message: "just text"}).Error())
}
