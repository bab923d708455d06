package entities

import (
	"strings"

	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// Team owns stacks and API keys. Team names are unique across the platform.
type Team struct {
	Meta
	Name         string
	Description  string
	ContactEmail string
	Active       bool
}

// Validate checks the fields the caller must supply before a save.
func (t *Team) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return pkgerrors.NewValidationError("team name cannot be empty")
	}
	if len(t.Name) > 100 {
		return pkgerrors.NewValidationError("team name cannot exceed 100 characters")
	}
	if len(t.Description) > 500 {
		return pkgerrors.NewValidationError("team description cannot exceed 500 characters")
	}
	return nil
}
