package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/angryss/idp/application/services"
	"github.com/angryss/idp/domain/core/entities"
	"github.com/angryss/idp/domain/core/valueobjects"
	"github.com/angryss/idp/pkg/common"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// CloudProviderHandler serves the /cloud-providers resource.
type CloudProviderHandler struct {
	providers *services.CloudProviderService
	stacks    *services.StackService
	logger    *zap.Logger
}

func NewCloudProviderHandler(providers *services.CloudProviderService, stacks *services.StackService, logger *zap.Logger) *CloudProviderHandler {
	return &CloudProviderHandler{providers: providers, stacks: stacks, logger: logger}
}

// CreateCloudProviderRequest is the body for POST /cloud-providers.
type CreateCloudProviderRequest struct {
	Name          string                 `json:"name"`
	DisplayName   string                 `json:"display_name,omitempty"`
	Kind          string                 `json:"kind"`
	Enabled       *bool                  `json:"enabled,omitempty"` // defaults to true
	Configuration valueobjects.ConfigDoc `json:"configuration,omitempty"`
}

// UpdateCloudProviderRequest is the body for PUT /cloud-providers/{providerID}.
type UpdateCloudProviderRequest struct {
	DisplayName   string                 `json:"display_name,omitempty"`
	Kind          string                 `json:"kind"`
	Enabled       bool                   `json:"enabled"`
	Configuration valueobjects.ConfigDoc `json:"configuration,omitempty"`
	Version       int64                  `json:"version"`
}

// CloudProviderResponse is the wire form of a provider.
type CloudProviderResponse struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	DisplayName   string                 `json:"display_name,omitempty"`
	Kind          string                 `json:"kind"`
	Enabled       bool                   `json:"enabled"`
	Configuration valueobjects.ConfigDoc `json:"configuration,omitempty"`
	CreatedAt     string                 `json:"created_at"`
	UpdatedAt     string                 `json:"updated_at"`
	Version       int64                  `json:"version"`
}

func cloudProviderResponse(p *entities.CloudProvider) CloudProviderResponse {
	return CloudProviderResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		DisplayName:   p.DisplayName,
		Kind:          string(p.Kind),
		Enabled:       p.Enabled,
		Configuration: p.Configuration,
		CreatedAt:     formatTimestamp(p.CreatedAt),
		UpdatedAt:     formatTimestamp(p.UpdatedAt),
		Version:       p.Version,
	}
}

func cloudProviderResponses(providers []*entities.CloudProvider) []CloudProviderResponse {
	out := make([]CloudProviderResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, cloudProviderResponse(p))
	}
	return out
}

// Create handles POST /cloud-providers.
func (h *CloudProviderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCloudProviderRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, err)
		return
	}

	provider := &entities.CloudProvider{
		Name:          req.Name,
		DisplayName:   req.DisplayName,
		Kind:          entities.ProviderKind(req.Kind),
		Enabled:       true,
		Configuration: req.Configuration,
	}
	if req.Enabled != nil {
		provider.Enabled = *req.Enabled
	}

	saved, err := h.providers.Register(r.Context(), provider)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, cloudProviderResponse(saved))
}

// Get handles GET /cloud-providers/{providerID}.
func (h *CloudProviderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "providerID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	provider, err := h.providers.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, cloudProviderResponse(provider))
}

// List handles GET /cloud-providers, with optional ?enabled= and ?kind=
// filters.
func (h *CloudProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("enabled"); raw != "" {
		enabled, perr := strconv.ParseBool(raw)
		if perr != nil {
			common.RespondError(w, pkgerrors.NewValidationError("invalid enabled filter: "+raw))
			return
		}
		providers, err := h.providers.ListByEnabled(r.Context(), enabled)
		if err != nil {
			common.RespondError(w, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, cloudProviderResponses(providers))
		return
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		providers, err := h.providers.ListByKind(r.Context(), entities.ProviderKind(kind))
		if err != nil {
			common.RespondError(w, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, cloudProviderResponses(providers))
		return
	}

	providers, err := h.providers.List(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, cloudProviderResponses(providers))
}

// Update handles PUT /cloud-providers/{providerID}. The name is immutable.
func (h *CloudProviderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "providerID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	var req UpdateCloudProviderRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, err)
		return
	}

	provider, err := h.providers.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	provider.DisplayName = req.DisplayName
	provider.Kind = entities.ProviderKind(req.Kind)
	provider.Enabled = req.Enabled
	provider.Configuration = req.Configuration
	provider.Version = req.Version

	saved, err := h.providers.Update(r.Context(), provider)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, cloudProviderResponse(saved))
}

// SetEnabled handles POST /cloud-providers/{providerID}/enable and /disable.
func (h *CloudProviderHandler) SetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "providerID")
		if err != nil {
			common.RespondError(w, err)
			return
		}
		provider, err := h.providers.SetEnabled(r.Context(), id, enabled)
		if err != nil {
			common.RespondError(w, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, cloudProviderResponse(provider))
	}
}

// ListStacks handles GET /cloud-providers/{providerID}/stacks.
func (h *CloudProviderHandler) ListStacks(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "providerID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	stacks, err := h.stacks.ListByCloudProvider(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, stackResponses(stacks))
}

// Delete handles DELETE /cloud-providers/{providerID}.
func (h *CloudProviderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "providerID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	if err := h.providers.Delete(r.Context(), id); err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusNoContent, nil)
}
