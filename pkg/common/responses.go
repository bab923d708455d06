// Package common holds the HTTP response envelope shared by every handler.
package common

import (
	"encoding/json"
	"net/http"

	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// APIResponse is the uniform response envelope.
type APIResponse struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo carries the machine-readable error classification.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// RespondJSON sends data in the envelope.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// RespondError maps a classified error to its HTTP status. Unclassified
// errors become an opaque 500; their text stays in the server log.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	info := &ErrorInfo{
		Code:    "INTERNAL",
		Message: "internal error",
	}

	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		info.Code = string(appErr.Type)
		info.Message = appErr.Message
		info.Details = appErr.Details
		switch appErr.Type {
		case pkgerrors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case pkgerrors.ErrorTypeValidation:
			status = http.StatusBadRequest
		case pkgerrors.ErrorTypeConflict:
			status = http.StatusConflict
		case pkgerrors.ErrorTypeUnavailable:
			status = http.StatusServiceUnavailable
		case pkgerrors.ErrorTypeConfiguration, pkgerrors.ErrorTypeInternal:
			status = http.StatusInternalServerError
			info.Message = "internal error"
			info.Details = nil
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: info})
}

// RespondUnauthorized rejects a request whose credential is missing,
// disabled, expired, or unknown, without distinguishing which.
func RespondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   &ErrorInfo{Code: "UNAUTHORIZED", Message: "invalid api key"},
	})
}

// RespondForbidden rejects a request whose credential is valid but lacks
// the scope the route demands.
func RespondForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   &ErrorInfo{Code: "FORBIDDEN", Message: "api key lacks the required scope"},
	})
}

// ParseJSONBody decodes a bounded JSON request body, rejecting unknown
// fields.
func ParseJSONBody(r *http.Request, v any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return pkgerrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}
