package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/angryss/idp/application/services"
	"github.com/angryss/idp/domain/core/entities"
	"github.com/angryss/idp/pkg/common"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// TeamHandler serves the /teams resource.
type TeamHandler struct {
	teams  *services.TeamService
	stacks *services.StackService
	keys   *services.APIKeyService
	logger *zap.Logger
}

func NewTeamHandler(teams *services.TeamService, stacks *services.StackService, keys *services.APIKeyService, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, stacks: stacks, keys: keys, logger: logger}
}

// CreateTeamRequest is the body for POST /teams.
type CreateTeamRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Active       *bool  `json:"active,omitempty"` // defaults to true
}

// UpdateTeamRequest is the body for PUT /teams/{teamID}. Version must be
// the version the client last read; a stale one is rejected as a conflict.
type UpdateTeamRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Active       bool   `json:"active"`
	Version      int64  `json:"version"`
}

// TeamResponse is the wire form of a team.
type TeamResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Active       bool   `json:"active"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	Version      int64  `json:"version"`
}

func teamResponse(t *entities.Team) TeamResponse {
	return TeamResponse{
		ID:           t.ID.String(),
		Name:         t.Name,
		Description:  t.Description,
		ContactEmail: t.ContactEmail,
		Active:       t.Active,
		CreatedAt:    formatTimestamp(t.CreatedAt),
		UpdatedAt:    formatTimestamp(t.UpdatedAt),
		Version:      t.Version,
	}
}

func teamResponses(teams []*entities.Team) []TeamResponse {
	out := make([]TeamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, teamResponse(t))
	}
	return out
}

// Create handles POST /teams.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, err)
		return
	}

	team := &entities.Team{
		Name:         req.Name,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		Active:       true,
	}
	if req.Active != nil {
		team.Active = *req.Active
	}

	saved, err := h.teams.Create(r.Context(), team)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, teamResponse(saved))
}

// Get handles GET /teams/{teamID}.
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "teamID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	team, err := h.teams.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, teamResponse(team))
}

// List handles GET /teams, with an optional ?active= filter.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, perr := strconv.ParseBool(raw)
		if perr != nil {
			common.RespondError(w, pkgerrors.NewValidationError("invalid active filter: "+raw))
			return
		}
		teams, err := h.teams.ListByActive(r.Context(), active)
		if err != nil {
			common.RespondError(w, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, teamResponses(teams))
		return
	}

	teams, err := h.teams.List(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, teamResponses(teams))
}

// GetByName handles GET /teams/by-name/{name}.
func (h *TeamHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	team, err := h.teams.GetByName(r.Context(), urlParamRaw(r, "name"))
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, teamResponse(team))
}

// Update handles PUT /teams/{teamID}.
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "teamID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	var req UpdateTeamRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, err)
		return
	}

	team, err := h.teams.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	team.Name = req.Name
	team.Description = req.Description
	team.ContactEmail = req.ContactEmail
	team.Active = req.Active
	team.Version = req.Version

	saved, err := h.teams.Update(r.Context(), team)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, teamResponse(saved))
}

// Delete handles DELETE /teams/{teamID}.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "teamID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	if err := h.teams.Delete(r.Context(), id); err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusNoContent, nil)
}

// Deactivate handles POST /teams/{teamID}/deactivate.
func (h *TeamHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "teamID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	team, err := h.teams.Deactivate(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, teamResponse(team))
}

// ListStacks handles GET /teams/{teamID}/stacks.
func (h *TeamHandler) ListStacks(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "teamID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	stacks, err := h.stacks.ListByTeam(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, stackResponses(stacks))
}

// ListAPIKeys handles GET /teams/{teamID}/api-keys.
func (h *TeamHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "teamID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	keys, err := h.keys.ListByTeam(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, apiKeyResponses(keys))
}
