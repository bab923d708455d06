package entities

import (
	"strings"

	"github.com/angryss/idp/domain/core/valueobjects"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// ProviderKind names the cloud a provider account lives in.
type ProviderKind string

const (
	ProviderKindAWS   ProviderKind = "aws"
	ProviderKindAzure ProviderKind = "azure"
	ProviderKindGCP   ProviderKind = "gcp"
	ProviderKindOther ProviderKind = "other"
)

// CloudProvider is a cloud account stacks can be deployed to. Disabled
// providers reject new stack deployments; existing stacks keep running.
type CloudProvider struct {
	Meta
	Name          string // unique short name, e.g. "aws-prod"
	DisplayName   string
	Kind          ProviderKind
	Enabled       bool
	Configuration valueobjects.ConfigDoc
}

// Validate checks the fields the caller must supply before a save.
func (c *CloudProvider) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return pkgerrors.NewValidationError("cloud provider name cannot be empty")
	}
	if len(c.Name) > 100 {
		return pkgerrors.NewValidationError("cloud provider name cannot exceed 100 characters")
	}
	switch c.Kind {
	case ProviderKindAWS, ProviderKindAzure, ProviderKindGCP, ProviderKindOther:
	default:
		return pkgerrors.NewValidationError("unknown cloud provider kind: " + string(c.Kind))
	}
	return nil
}
