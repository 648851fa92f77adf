package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{domain.Internal("op", domain.ErrNotFound), http.StatusInternalServerError, KindInternal},
		{fmt.Errorf("x: %w", domain.ErrConflict), http.StatusConflict, KindConflict},
		{domain.ErrNotFound, http.StatusNotFound, KindNotFound},
		{domain.ErrExpired, http.StatusGone, KindExpired},
		{domain.ErrMismatch, http.StatusBadRequest, KindMismatch},
		{fmt.Errorf("x: %w", domain.ErrTooManyAttempts), http.StatusTooManyRequests, KindTooMany},
		{domain.ErrInvalidFlow, http.StatusConflict, KindInvalidFlow},
		{domain.ErrUnauthorized, http.StatusUnauthorized, KindUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden, KindForbidden},
		{domain.ErrBadRequest, http.StatusBadRequest, KindBadRequest},
		{fmt.Errorf("unknown"), http.StatusInternalServerError, KindInternal},
	}
	for _, tc := range cases {
		status, kind := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.kind, kind, tc.err.Error())
	}
}
