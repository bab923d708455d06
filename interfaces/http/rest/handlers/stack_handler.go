package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/services"
	"github.com/angryss/idp/domain/core/entities"
	"github.com/angryss/idp/domain/core/valueobjects"
	"github.com/angryss/idp/pkg/common"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// StackHandler serves the /stacks resource.
type StackHandler struct {
	stacks *services.StackService
	logger *zap.Logger
}

func NewStackHandler(stacks *services.StackService, logger *zap.Logger) *StackHandler {
	return &StackHandler{stacks: stacks, logger: logger}
}

// CreateStackRequest is the body for POST /stacks.
type CreateStackRequest struct {
	Name                string                 `json:"name"`
	Description         string                 `json:"description,omitempty"`
	CloudName           string                 `json:"cloud_name"`
	RoutePath           string                 `json:"route_path"`
	RepositoryURL       string                 `json:"repository_url,omitempty"`
	StackType           string                 `json:"stack_type"`
	ProgrammingLanguage string                 `json:"programming_language,omitempty"`
	Public              bool                   `json:"public"`
	CreatedBy           string                 `json:"created_by,omitempty"`
	TeamID              string                 `json:"team_id"`
	CloudProviderID     string                 `json:"cloud_provider_id,omitempty"`
	Configuration       valueobjects.ConfigDoc `json:"configuration,omitempty"`
}

// UpdateStackRequest is the body for PUT /stacks/{stackID}.
type UpdateStackRequest struct {
	Name                string                 `json:"name"`
	Description         string                 `json:"description,omitempty"`
	RepositoryURL       string                 `json:"repository_url,omitempty"`
	ProgrammingLanguage string                 `json:"programming_language,omitempty"`
	Public              bool                   `json:"public"`
	CloudProviderID     string                 `json:"cloud_provider_id,omitempty"`
	Configuration       valueobjects.ConfigDoc `json:"configuration,omitempty"`
	Version             int64                  `json:"version"`
}

// TransferStacksRequest is the body for POST /stacks/transfer.
type TransferStacksRequest struct {
	FromTeamID string `json:"from_team_id"`
	ToTeamID   string `json:"to_team_id"`
}

// StackResponse is the wire form of a stack.
type StackResponse struct {
	ID                  string                 `json:"id"`
	Name                string                 `json:"name"`
	Description         string                 `json:"description,omitempty"`
	CloudName           string                 `json:"cloud_name"`
	RoutePath           string                 `json:"route_path"`
	RepositoryURL       string                 `json:"repository_url,omitempty"`
	StackType           string                 `json:"stack_type"`
	ProgrammingLanguage string                 `json:"programming_language,omitempty"`
	Public              bool                   `json:"public"`
	CreatedBy           string                 `json:"created_by,omitempty"`
	TeamID              string                 `json:"team_id"`
	CloudProviderID     string                 `json:"cloud_provider_id,omitempty"`
	Configuration       valueobjects.ConfigDoc `json:"configuration,omitempty"`
	CreatedAt           string                 `json:"created_at"`
	UpdatedAt           string                 `json:"updated_at"`
	Version             int64                  `json:"version"`
}

func stackResponse(s *entities.Stack) StackResponse {
	resp := StackResponse{
		ID:                  s.ID.String(),
		Name:                s.Name,
		Description:         s.Description,
		CloudName:           s.CloudName,
		RoutePath:           s.RoutePath,
		RepositoryURL:       s.RepositoryURL,
		StackType:           string(s.StackType),
		ProgrammingLanguage: string(s.ProgrammingLanguage),
		Public:              s.Public,
		CreatedBy:           s.CreatedBy,
		TeamID:              s.TeamID.String(),
		Configuration:       s.Configuration,
		CreatedAt:           formatTimestamp(s.CreatedAt),
		UpdatedAt:           formatTimestamp(s.UpdatedAt),
		Version:             s.Version,
	}
	if s.CloudProviderID != uuid.Nil {
		resp.CloudProviderID = s.CloudProviderID.String()
	}
	return resp
}

func stackResponses(stacks []*entities.Stack) []StackResponse {
	out := make([]StackResponse, 0, len(stacks))
	for _, s := range stacks {
		out = append(out, stackResponse(s))
	}
	return out
}

func parseOptionalUUID(raw, field string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.NewValidationError("invalid " + field + ": " + raw)
	}
	return id, nil
}

// Create handles POST /stacks.
func (h *StackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateStackRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, err)
		return
	}

	teamID, err := parseOptionalUUID(req.TeamID, "team_id")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	providerID, err := parseOptionalUUID(req.CloudProviderID, "cloud_provider_id")
	if err != nil {
		common.RespondError(w, err)
		return
	}

	stack := &entities.Stack{
		Name:                req.Name,
		Description:         req.Description,
		CloudName:           req.CloudName,
		RoutePath:           req.RoutePath,
		RepositoryURL:       req.RepositoryURL,
		StackType:           entities.StackType(req.StackType),
		ProgrammingLanguage: entities.ProgrammingLanguage(req.ProgrammingLanguage),
		Public:              req.Public,
		CreatedBy:           req.CreatedBy,
		TeamID:              teamID,
		CloudProviderID:     providerID,
		Configuration:       req.Configuration,
	}

	saved, err := h.stacks.Create(r.Context(), stack)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, stackResponse(saved))
}

// Get handles GET /stacks/{stackID}.
func (h *StackHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "stackID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	stack, err := h.stacks.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, stackResponse(stack))
}

// GetByCloudName handles GET /stacks/by-cloud-name/{cloudName}.
func (h *StackHandler) GetByCloudName(w http.ResponseWriter, r *http.Request) {
	stack, err := h.stacks.GetByCloudName(r.Context(), urlParamRaw(r, "cloudName"))
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, stackResponse(stack))
}

// List handles GET /stacks, with an optional ?type= filter.
func (h *StackHandler) List(w http.ResponseWriter, r *http.Request) {
	if stackType := r.URL.Query().Get("type"); stackType != "" {
		stacks, err := h.stacks.ListByType(r.Context(), entities.StackType(stackType))
		if err != nil {
			common.RespondError(w, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, stackResponses(stacks))
		return
	}

	stacks, err := h.stacks.List(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, stackResponses(stacks))
}

// Update handles PUT /stacks/{stackID}. Identity fields (cloud name, route
// path, owning team, type) are immutable here; ownership moves go through
// the transfer endpoint.
func (h *StackHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "stackID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	var req UpdateStackRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, err)
		return
	}
	providerID, err := parseOptionalUUID(req.CloudProviderID, "cloud_provider_id")
	if err != nil {
		common.RespondError(w, err)
		return
	}

	stack, err := h.stacks.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	stack.Name = req.Name
	stack.Description = req.Description
	stack.RepositoryURL = req.RepositoryURL
	stack.ProgrammingLanguage = entities.ProgrammingLanguage(req.ProgrammingLanguage)
	stack.Public = req.Public
	stack.CloudProviderID = providerID
	stack.Configuration = req.Configuration
	stack.Version = req.Version

	saved, err := h.stacks.Update(r.Context(), stack)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, stackResponse(saved))
}

// Delete handles DELETE /stacks/{stackID}.
func (h *StackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "stackID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	if err := h.stacks.Delete(r.Context(), id); err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusNoContent, nil)
}

// Transfer handles POST /stacks/transfer.
func (h *StackHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferStacksRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, err)
		return
	}
	fromID, err := parseOptionalUUID(req.FromTeamID, "from_team_id")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	toID, err := parseOptionalUUID(req.ToTeamID, "to_team_id")
	if err != nil {
		common.RespondError(w, err)
		return
	}

	moved, err := h.stacks.TransferToTeam(r.Context(), fromID, toID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]int{"transferred": moved})
}
