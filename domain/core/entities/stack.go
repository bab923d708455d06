package entities

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angryss/idp/domain/core/valueobjects"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// StackType categorizes how a stack is deployed.
type StackType string

const (
	StackTypeService   StackType = "service"
	StackTypeWebapp    StackType = "webapp"
	StackTypeFunction  StackType = "function"
	StackTypeScheduled StackType = "scheduled"
)

// ProgrammingLanguage is the primary language of a stack's repository.
type ProgrammingLanguage string

const (
	LanguageGo         ProgrammingLanguage = "go"
	LanguageJava       ProgrammingLanguage = "java"
	LanguagePython     ProgrammingLanguage = "python"
	LanguageTypeScript ProgrammingLanguage = "typescript"
	LanguageCSharp     ProgrammingLanguage = "csharp"
)

var (
	cloudNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{2,59}$`)
	routePathPattern = regexp.MustCompile(`^/[a-zA-Z][a-zA-Z0-9_-]{2,19}/$`)
)

// Stack is a deployable unit. It references its owning team and the cloud
// provider it deploys to by identifier; neither reference is embedded.
type Stack struct {
	Meta
	Name                string
	Description         string
	CloudName           string // unique, DNS-safe deployment name
	RoutePath           string // unique ingress route, "/name/" form
	RepositoryURL       string
	StackType           StackType
	ProgrammingLanguage ProgrammingLanguage
	Public              bool
	CreatedBy           string
	TeamID              uuid.UUID
	CloudProviderID     uuid.UUID
	Configuration       valueobjects.ConfigDoc
}

// Validate checks the fields the caller must supply before a save.
func (s *Stack) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return pkgerrors.NewValidationError("stack name cannot be empty")
	}
	if len(s.Name) > 100 {
		return pkgerrors.NewValidationError("stack name cannot exceed 100 characters")
	}
	if !cloudNamePattern.MatchString(s.CloudName) || strings.Contains(s.CloudName, "__") || strings.Contains(s.CloudName, "--") {
		return pkgerrors.NewValidationError("invalid cloud name format")
	}
	if !routePathPattern.MatchString(s.RoutePath) || strings.Contains(s.RoutePath, "__") || strings.Contains(s.RoutePath, "--") {
		return pkgerrors.NewValidationError("invalid route path format")
	}
	if s.StackType == "" {
		return pkgerrors.NewValidationError("stack type is required")
	}
	if strings.TrimSpace(s.CreatedBy) == "" {
		return pkgerrors.NewValidationError("stack createdBy cannot be empty")
	}
	if s.TeamID == uuid.Nil {
		return pkgerrors.NewValidationError("stack must belong to a team")
	}
	return nil
}
