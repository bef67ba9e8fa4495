package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/internal/api/response"
	"github.com/orbitalscope/terralens/internal/store"
	"github.com/orbitalscope/terralens/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyPrefixLen   = 8
	keyRandomBytes = 16
)

// KeyStore is the API-key management surface, admin-only.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, owner string) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, owner string) error
}

// NewCreateKeyHandler returns the handler for POST /api/v1/admin/keys. The raw
// key appears in this response and nowhere else; only its bcrypt hash is kept.
func NewCreateKeyHandler(st KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Owner  string   `json:"owner"`
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Owner == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "owner is required", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}

		rawKey, err := generateRawKey()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to generate key", nil)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to hash key", nil)
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:        uuid.New(),
			Owner:     req.Owner,
			Name:      req.Name,
			KeyHash:   string(hash),
			KeyPrefix: rawKey[:keyPrefixLen],
			Scopes:    req.Scopes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.CreateAPIKey(r.Context(), key); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to store key", nil)
			return
		}

		response.Created(w, map[string]any{
			"id":         key.ID,
			"key":        rawKey,
			"key_prefix": key.KeyPrefix,
			"owner":      key.Owner,
			"name":       key.Name,
			"scopes":     key.Scopes,
		})
	}
}

// NewListKeysHandler returns the handler for GET /api/v1/admin/keys?owner=...
func NewListKeysHandler(st KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "owner query parameter is required", nil)
			return
		}

		keys, err := st.ListAPIKeys(r.Context(), owner)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeKeyHandler returns the handler for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(st KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "keyID must be a UUID", nil)
			return
		}
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "owner query parameter is required", nil)
			return
		}

		err = st.RevokeAPIKey(r.Context(), id, owner)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "No such key", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// generateRawKey produces a key of the form tl_<32 hex chars>. The first eight
// characters double as the database lookup prefix.
func generateRawKey() (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "tl_" + hex.EncodeToString(buf), nil
}
