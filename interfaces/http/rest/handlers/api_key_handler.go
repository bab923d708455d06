package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/services"
	"github.com/angryss/idp/domain/core/entities"
	"github.com/angryss/idp/pkg/common"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// APIKeyHandler serves the /api-keys resource. Secrets are generated here,
// returned exactly once in the create and rotate responses, and stored only
// as SHA-256 hashes.
type APIKeyHandler struct {
	keys   *services.APIKeyService
	logger *zap.Logger
}

func NewAPIKeyHandler(keys *services.APIKeyService, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, logger: logger}
}

// CreateAPIKeyRequest is the body for POST /api-keys.
type CreateAPIKeyRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	TeamID    string `json:"team_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"` // RFC 3339
}

// APIKeyResponse is the wire form of a key. Secret is set only when the
// key was just generated.
type APIKeyResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	KeyPrefix  string  `json:"key_prefix,omitempty"`
	Type       string  `json:"type"`
	TeamID     string  `json:"team_id,omitempty"`
	Enabled    bool    `json:"enabled"`
	ExpiresAt  *string `json:"expires_at,omitempty"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	Version    int64   `json:"version"`

	Secret string `json:"secret,omitempty"`
}

func apiKeyResponse(k *entities.APIKey) APIKeyResponse {
	resp := APIKeyResponse{
		ID:         k.ID.String(),
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		Type:       string(k.Type),
		Enabled:    k.Enabled,
		ExpiresAt:  formatTimestampPtr(k.ExpiresAt),
		LastUsedAt: formatTimestampPtr(k.LastUsedAt),
		CreatedAt:  formatTimestamp(k.CreatedAt),
		UpdatedAt:  formatTimestamp(k.UpdatedAt),
		Version:    k.Version,
	}
	if k.TeamID != uuid.Nil {
		resp.TeamID = k.TeamID.String()
	}
	return resp
}

func apiKeyResponses(keys []*entities.APIKey) []APIKeyResponse {
	out := make([]APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, apiKeyResponse(k))
	}
	return out
}

// generateSecret produces the plaintext credential and its stored form.
func generateSecret() (secret, hash, prefix string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", pkgerrors.NewInternalError("generate key material").WithCause(err)
	}
	secret = "idp_" + hex.EncodeToString(raw)
	digest := sha256.Sum256([]byte(secret))
	hash = hex.EncodeToString(digest[:])
	prefix = secret[:12]
	return secret, hash, prefix, nil
}

func (h *APIKeyHandler) buildKey(req CreateAPIKeyRequest) (*entities.APIKey, string, error) {
	teamID, err := parseOptionalUUID(req.TeamID, "team_id")
	if err != nil {
		return nil, "", err
	}
	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return nil, "", pkgerrors.NewValidationError("invalid expires_at: " + req.ExpiresAt)
		}
		t = t.UTC()
		expiresAt = &t
	}

	secret, hash, prefix, err := generateSecret()
	if err != nil {
		return nil, "", err
	}
	return &entities.APIKey{
		Name:      req.Name,
		KeyHash:   hash,
		KeyPrefix: prefix,
		Type:      entities.APIKeyType(req.Type),
		TeamID:    teamID,
		Enabled:   true,
		ExpiresAt: expiresAt,
	}, secret, nil
}

// Create handles POST /api-keys.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, err)
		return
	}

	key, secret, err := h.buildKey(req)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	issued, err := h.keys.Issue(r.Context(), key)
	if err != nil {
		common.RespondError(w, err)
		return
	}

	resp := apiKeyResponse(issued)
	resp.Secret = secret
	common.RespondJSON(w, http.StatusCreated, resp)
}

// Get handles GET /api-keys/{keyID}.
func (h *APIKeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "keyID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	key, err := h.keys.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, apiKeyResponse(key))
}

// List handles GET /api-keys, with an optional ?type= filter.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	if keyType := r.URL.Query().Get("type"); keyType != "" {
		keys, err := h.keys.ListByType(r.Context(), entities.APIKeyType(keyType))
		if err != nil {
			common.RespondError(w, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, apiKeyResponses(keys))
		return
	}

	keys, err := h.keys.List(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, apiKeyResponses(keys))
}

// Rotate handles POST /api-keys/{keyID}/rotate. The old key stops working
// and the response carries the replacement's secret, once.
func (h *APIKeyHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "keyID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	old, err := h.keys.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}

	secret, hash, prefix, err := generateSecret()
	if err != nil {
		common.RespondError(w, err)
		return
	}
	replacement := &entities.APIKey{
		Name:      old.Name,
		KeyHash:   hash,
		KeyPrefix: prefix,
		Type:      old.Type,
		TeamID:    old.TeamID,
		Enabled:   true,
		ExpiresAt: old.ExpiresAt,
	}

	issued, err := h.keys.Rotate(r.Context(), id, replacement)
	if err != nil {
		common.RespondError(w, err)
		return
	}

	resp := apiKeyResponse(issued)
	resp.Secret = secret
	common.RespondJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api-keys/{keyID}.
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "keyID")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	if err := h.keys.Revoke(r.Context(), id); err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusNoContent, nil)
}

// PruneExpired handles POST /api-keys/prune-expired.
func (h *APIKeyHandler) PruneExpired(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().UTC()
	if raw := r.URL.Query().Get("cutoff"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.RespondError(w, pkgerrors.NewValidationError("invalid cutoff: "+raw))
			return
		}
		cutoff = t.UTC()
	}

	removed, err := h.keys.PruneExpired(r.Context(), cutoff)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
