package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edufund/internal/core"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		JSON(map[string]int{"n": 1}).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "value", w.Header().Get("X-Custom"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, w.Body.String())
}

func TestResponseBuilder_Attachment(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().Attachment("财务报表_2024-09.csv", "text/csv; charset=utf-8", []byte("a,b")).Write(w)

	assert.Equal(t, "a,b", w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="report_2024-09.csv"; filename*=UTF-8''%E8%B4%A2%E5%8A%A1%E6%8A%A5%E8%A1%A8_2024-09.csv`,
		w.Header().Get("Content-Disposition"))
}

func TestServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("donation DON-1: %w", core.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: rejected to approved", core.ErrInvalidTransition), http.StatusConflict, "invalid_transition"},
		{core.ErrUsernameTaken, http.StatusConflict, "username_taken"},
		{fmt.Errorf("funding: %w", core.ErrBudgetMismatch), http.StatusUnprocessableEntity, "budget_mismatch"},
		{core.ErrInvalidMonth, http.StatusBadRequest, "invalid_month"},
		{core.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			ServiceError(tt.err).Write(w)

			assert.Equal(t, tt.status, w.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.err.Error(), body.Error.Message)
		})
	}
}

func TestServiceError_HidesUnknown(t *testing.T) {
	w := httptest.NewRecorder()
	ServiceError(errors.New("database is locked")).Write(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "locked")
}
