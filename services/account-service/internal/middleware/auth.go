package middleware

import (
	"context"
	"net/http"
	"strings"

	"AccountPlatform/pkg/errors"
	"AccountPlatform/services/account-service/internal/domain"
)

// Authenticator проверяет bearer токен
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

type identityKey struct{}

// AuthMiddleware проверяет bearer токен и кладет идентичность вызывающего в контекст
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				errors.WriteJSON(w, errors.New(errors.ErrUnauthorized, domain.MsgNotAuthenticated))
				return
			}

			identity, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				errors.WriteJSON(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity возвращает контекст с идентичностью вызывающего
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom извлекает идентичность вызывающего из контекста
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(domain.Identity)
	return identity, ok
}

// bearerToken извлекает токен из заголовка "Bearer <token>"
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
