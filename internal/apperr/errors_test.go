package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", NotFound("ticket"), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", NotFound("schedule")), http.StatusNotFound},
		{"validation", Invalid("bad seat"), http.StatusBadRequest},
		{"conflict", Conflict("seat", "held"), http.StatusConflict},
		{"forbidden", Forbidden("admin only"), http.StatusForbidden},
		{"unauthorized", Unauthorized(""), http.StatusUnauthorized},
		{"plain", errors.New("db down"), http.StatusInternalServerError},
		{"internal", Internal("gateway", errors.New("timeout")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "ticket not found", NotFound("ticket").Error())
	assert.Equal(t, "seat conflict: held", Conflict("seat", "held").Error())
	assert.Equal(t, "phone: must be 10 digits", ValidationError{Field: "phone", Msg: "must be 10 digits"}.Error())
	assert.Equal(t, "Vé đã được thanh toán", Invalidf("Vé đã được %s", "thanh toán").Error())
	assert.Equal(t, "internal server error", PublicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, "ticket not found", PublicMessage(NotFound("ticket")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := Internal("wrapped", cause)
	assert.ErrorIs(t, err, cause)
}
