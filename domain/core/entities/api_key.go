package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// APIKeyType scopes what a credential may do.
type APIKeyType string

const (
	APIKeyTypeAdmin    APIKeyType = "admin"
	APIKeyTypeTeam     APIKeyType = "team"
	APIKeyTypeReadonly APIKeyType = "readonly"
)

// APIKey is an access credential. Only the hash of the secret is stored; the
// prefix is kept so operators can identify a key without its secret.
type APIKey struct {
	Meta
	Name       string
	KeyHash    string // unique
	KeyPrefix  string
	Type       APIKeyType
	TeamID     uuid.UUID // required for team-scoped keys
	Enabled    bool
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
}

// Validate checks the fields the caller must supply before a save.
func (k *APIKey) Validate() error {
	if strings.TrimSpace(k.Name) == "" {
		return pkgerrors.NewValidationError("api key name cannot be empty")
	}
	if k.KeyHash == "" {
		return pkgerrors.NewValidationError("api key hash cannot be empty")
	}
	switch k.Type {
	case APIKeyTypeAdmin, APIKeyTypeTeam, APIKeyTypeReadonly:
	default:
		return pkgerrors.NewValidationError("unknown api key type: " + string(k.Type))
	}
	if k.Type == APIKeyTypeTeam && k.TeamID == uuid.Nil {
		return pkgerrors.NewValidationError("team-scoped api key must reference a team")
	}
	return nil
}

// Expired reports whether the key's expiry has passed at the given time.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
