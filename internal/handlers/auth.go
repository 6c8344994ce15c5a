package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avolkov/mediatube/internal/apperrors"
	"github.com/avolkov/mediatube/internal/handlers/render"
	"github.com/avolkov/mediatube/internal/models"
)

// Auth service
type AuthService interface {
	// Login user by username or email
	// Has to return apperrors.ErrUserNotFound if no user matches,
	// apperrors.ErrInvalidCredentials if the password mismatches
	Login(ctx context.Context, username string, email string, password string) (models.User, models.TokenPair, error)

	// Verify and rotate the refresh token
	// Has to return apperrors.ErrRefreshTokenInvalid or apperrors.ErrRefreshTokenUsed on failures
	Refresh(ctx context.Context, presented string) (models.User, models.TokenPair, error)

	// Revoke the stored refresh token
	Logout(ctx context.Context, userID primitive.ObjectID) error

	// Cookie carriage for both tokens
	SetAuthCookies(w http.ResponseWriter, pair models.TokenPair)
	ClearAuthCookies(w http.ResponseWriter)
	ReadRefresh(r *http.Request) (string, error)
}

type AuthHandler struct {
	auth AuthService
}

func NewAuth(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Username string `json:"username" validate:"required_without=Email"`
		Email    string `json:"email" validate:"required_without=Username"`
		Password string `json:"password" validate:"required"`
	}
	type LoginSuccessResponse struct {
		User         models.PublicUser `json:"user"`
		AccessToken  string            `json:"accessToken"`
		RefreshToken string            `json:"refreshToken"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.auth.Login(r.Context(), data.Username, data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.Error(w, http.StatusNotFound, "User not found")
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.Error(w, http.StatusUnauthorized, "Invalid user credentials")
		default:
			render.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.auth.SetAuthCookies(w, pair)
	render.JSON(w, http.StatusOK, LoginSuccessResponse{
		User:         user.Public(),
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	}, "User logged in successfully")
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		render.Error(w, http.StatusUnauthorized, "Unauthorized request")
		return
	}

	if err := h.auth.Logout(r.Context(), user.ID); err != nil {
		render.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.auth.ClearAuthCookies(w)
	render.JSON(w, http.StatusOK, struct{}{}, "User logged out successfully")
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshSuccessResponse struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	presented, err := h.auth.ReadRefresh(r)
	if err != nil {
		// Non-browser clients may send the token in the body instead
		presented = refreshFromBody(r)
	}
	if presented == "" {
		render.Error(w, http.StatusUnauthorized, "Unauthorized request")
		return
	}

	_, pair, err := h.auth.Refresh(r.Context(), presented)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenUsed):
			render.Error(w, http.StatusUnauthorized, "Refresh Token is expired or used")
		case errors.Is(err, apperrors.ErrRefreshTokenInvalid):
			render.Error(w, http.StatusUnauthorized, "Invalid refresh token")
		default:
			render.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.auth.SetAuthCookies(w, pair)
	render.JSON(w, http.StatusOK, RefreshSuccessResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	}, "Access token refreshed")
}

func refreshFromBody(r *http.Request) string {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return body.RefreshToken
}
