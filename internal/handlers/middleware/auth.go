package middleware

import (
	"context"
	"net/http"

	"github.com/avolkov/mediatube/internal/handlers"
	"github.com/avolkov/mediatube/internal/handlers/render"
	"github.com/avolkov/mediatube/internal/models"
)

type authService interface {
	Authenticate(ctx context.Context, r *http.Request) (models.User, error)
}

// Auth gates protected routes: requests without a valid access token get 401
// Expired access tokens always fail here, refreshing is the client's move
func Auth(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Authenticate(r.Context(), r)
			if err != nil {
				render.Error(w, http.StatusUnauthorized, "Unauthorized request")
				return
			}
			ctx := handlers.NewContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
