package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angryss/idp/pkg/errors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRespondJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondJSON(rec, http.StatusCreated, map[string]string{"name": "platform"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", pkgerrors.NewNotFoundError("team"), http.StatusNotFound, "NOT_FOUND"},
		{"validation", pkgerrors.NewValidationError("bad name"), http.StatusBadRequest, "VALIDATION"},
		{"conflict", pkgerrors.NewConflictError("version race"), http.StatusConflict, "CONFLICT"},
		{"unavailable", pkgerrors.NewUnavailableError("postgresql", nil), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"configuration", pkgerrors.NewConfigurationError("bad dsn"), http.StatusInternalServerError, "CONFIGURATION"},
		{"internal", pkgerrors.NewInternalError("nil map write"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)

			resp := decodeEnvelope(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestRespondErrorMasksInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, pkgerrors.NewInternalError("pq: out of shared memory").
		WithDetails(map[string]any{"query": "DELETE FROM teams"}))

	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "internal error", resp.Error.Message)
	assert.Nil(t, resp.Error.Details)
	assert.NotContains(t, rec.Body.String(), "shared memory")
}

func TestRespondErrorUnclassified(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("unplanned"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL", resp.Error.Code)
	assert.Equal(t, "internal error", resp.Error.Message)
}

func TestRespondErrorKeepsClientDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, pkgerrors.NewConflictError("team still owns stacks").
		WithDetails(map[string]any{"stack_count": 2}))

	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "team still owns stacks", resp.Error.Message)
	assert.EqualValues(t, 2, resp.Error.Details["stack_count"])
}

func TestRespondUnauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondUnauthorized(rec)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
}

func TestRespondForbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondForbidden(rec)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
}

func TestParseJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"platform"}`))
		var p payload
		require.NoError(t, ParseJSONBody(req, &p, 1024))
		assert.Equal(t, "platform", p.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","role":"admin"}`))
		var p payload
		err := ParseJSONBody(req, &p, 1024)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("oversized body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", 64)+`"}`))
		var p payload
		err := ParseJSONBody(req, &p, 16)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var p payload
		assert.Error(t, ParseJSONBody(req, &p, 1024))
	})
}
