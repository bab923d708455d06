// Package handlers maps HTTP requests onto the application services.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angryss/idp/pkg/errors"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.NewValidationError("invalid " + name + ": " + raw)
	}
	return id, nil
}

func urlParamRaw(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTimestamp(*t)
	return &s
}
