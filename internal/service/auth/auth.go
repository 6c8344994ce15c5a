package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avolkov/mediatube/internal/apperrors"
	"github.com/avolkov/mediatube/internal/models"
	"github.com/avolkov/mediatube/internal/repository"
	"github.com/avolkov/mediatube/internal/service/auth/tokenmanager"
)

const (
	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
	defaultAccessAuthScheme  = "Bearer"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Cookie names for both tokens
	// If not set than default is used
	AccessCookieName  string
	RefreshCookieName string

	// Hasher to use during login
	// BcryptHasher is used if not set
	Hasher PasswordHasher
}

// Auth service
type AuthService struct {
	// Manager to issue and validate token pairs (access and refresh)
	token *tokenmanager.TokenManager

	// hasher to compare user passwords
	hasher PasswordHasher

	// Repository to access long term data
	userRepo repository.UserRepo

	accessCookieName  string
	refreshCookieName string
	accessAuthScheme  string
}

func NewService(cfg Config, token *tokenmanager.TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if cfg.AccessCookieName == "" {
		cfg.AccessCookieName = defaultAccessCookieName
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = defaultRefreshCookieName
	}

	return &AuthService{
		token:             token,
		hasher:            cfg.Hasher,
		userRepo:          userRepo,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		accessAuthScheme:  defaultAccessAuthScheme,
	}, nil
}

// Login user with username or email plus password
// Has to return apperrors.ErrUserNotFound if no user matches,
// apperrors.ErrInvalidCredentials if the password mismatches
func (s *AuthService) Login(ctx context.Context, username string, email string, password string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.userRepo.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return user, pair, err
	}

	err = s.hasher.Compare(user.HashedPassword, password)
	if err != nil {
		return user, pair, apperrors.ErrInvalidCredentials
	}

	pair, err = s.token.IssuePair(ctx, user)
	if err != nil {
		return user, pair, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	return user, pair, nil
}

// Refresh verifies the presented refresh token and rotates the pair
// The token is valid only if it verifies cryptographically AND equals
// the value currently stored on the user record
func (s *AuthService) Refresh(ctx context.Context, presented string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	userID, err := s.token.ParseRefresh(presented)
	if err != nil {
		return models.User{}, pair, fmt.Errorf("%w: %w", apperrors.ErrRefreshTokenInvalid, err)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, pair, apperrors.ErrRefreshTokenInvalid
	default:
		return user, pair, err
	}

	if user.RefreshToken == "" || user.RefreshToken != presented {
		return user, pair, apperrors.ErrRefreshTokenUsed
	}

	pair, err = s.token.Rotate(ctx, user, presented)
	switch {
	case err == nil:
		return user, pair, nil
	case errors.Is(err, apperrors.ErrRefreshTokenUsed):
		return user, pair, apperrors.ErrRefreshTokenUsed
	default:
		return user, pair, fmt.Errorf("token could not be generated, sorry. %w", err)
	}
}

// Logout revokes the stored refresh token
func (s *AuthService) Logout(ctx context.Context, userID primitive.ObjectID) error {
	return s.token.Revoke(ctx, userID)
}

// Authenticate request by its access token (cookie or bearer header)
// Returns the referenced user or error if the request is not authenticated
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	access := s.readAccess(r)
	if access == "" {
		return models.User{}, errors.New("no access token in request")
	}

	userID, err := s.token.ParseAccess(access)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	// The request context must not carry credentials
	user.HashedPassword = ""
	user.RefreshToken = ""
	return user, nil
}

// Set both tokens as httpOnly secure cookies
func (s *AuthService) SetAuthCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, s.cookie(s.accessCookieName, pair.Access))
	http.SetCookie(w, s.cookie(s.refreshCookieName, pair.Refresh))
}

// Clear both token cookies
func (s *AuthService) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{s.accessCookieName, s.refreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// Read refresh token from its cookie
func (s *AuthService) ReadRefresh(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", fmt.Errorf("no refresh token cookie. Err: %w", err)
	}

	return cookie.Value, nil
}

func (s *AuthService) readAccess(r *http.Request) string {
	cookie, err := r.Cookie(s.accessCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if found && scheme == s.accessAuthScheme {
		return strings.TrimSpace(token)
	}

	return ""
}

func (s *AuthService) cookie(name string, token models.IssuedToken) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
