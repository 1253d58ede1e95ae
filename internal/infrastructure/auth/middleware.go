package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	"github.com/honeynil/auth-gateway/internal/models"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*models.Identity)
	return id, ok && id != nil
}

// AuthMiddleware lets a request through only with a valid access token and
// stores the resulting identity in the request context.
func AuthMiddleware(gate *Gate, writeError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := gate.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				observability.Logger(r.Context()).Warn("request rejected",
					"path", r.URL.Path, "kind", pkgerrors.Kind(err), "error", err)
				if errors.Is(err, pkgerrors.ErrNoCredentials) {
					w.Header().Set("WWW-Authenticate", gate.Scheme())
				}
				writeError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
