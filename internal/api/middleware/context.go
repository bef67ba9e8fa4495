package middleware

import (
	"context"
	"net/http"

	"github.com/orbitalscope/terralens/pkg/models"
)

type contextKey string

const (
	ownerKey        contextKey = "owner"
	keyPrefixKey    contextKey = "key_prefix"
	apiKeyScopesKey contextKey = "api_key_scopes"
)

func SetOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// GetOwner returns the authenticated owner, or the anonymous sentinel when the
// request carried no credentials.
func GetOwner(r *http.Request) string {
	if owner, ok := r.Context().Value(ownerKey).(string); ok && owner != "" {
		return owner
	}
	return models.OwnerAnonymous
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, apiKeyScopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(apiKeyScopesKey).([]string)
	return scopes
}
