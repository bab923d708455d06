package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/angryss/idp/application/services"
	"github.com/angryss/idp/domain/core/entities"
	"github.com/angryss/idp/pkg/common"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// Authenticate resolves the X-API-Key header against the credential store.
// The plaintext key is hashed before lookup; only the hash is ever stored
// or compared.
func Authenticate(keys *services.APIKeyService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if secret == "" {
				common.RespondError(w, pkgerrors.NewValidationError("missing X-API-Key header"))
				return
			}

			digest := sha256.Sum256([]byte(secret))
			key, err := keys.Authenticate(r.Context(), hex.EncodeToString(digest[:]))
			if err != nil {
				if pkgerrors.IsNotFound(err) {
					common.RespondUnauthorized(w)
					return
				}
				common.RespondError(w, err)
				return
			}

			// Usage accounting must not block or fail the request. It gets
			// its own bounded context and a private copy of the credential,
			// because the original is handed to the request context.
			usage := *key
			go func() {
				ctx, cancel := context.WithTimeout(
					context.WithoutCancel(r.Context()), touchUsageTimeout)
				defer cancel()
				keys.TouchUsage(ctx, &usage, time.Now())
			}()

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), apiKeyContextKey, key)))
		})
	}
}

const touchUsageTimeout = 5 * time.Second

// RequireAdmin restricts a route group to admin-typed credentials. It sits
// behind Authenticate and reads the credential it stored.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := KeyFromContext(r.Context())
		if !ok || key.Type != entities.APIKeyTypeAdmin {
			common.RespondForbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// KeyFromContext returns the authenticated credential, if any.
func KeyFromContext(ctx context.Context) (*entities.APIKey, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(*entities.APIKey)
	return key, ok
}
