package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avolkov/mediatube/internal/models"
	"github.com/avolkov/mediatube/internal/repository"
)

const (
	defaultSigningMethod   = "HS256"
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 10 * 24 * time.Hour
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Token manager with sensible defaults
type Config struct {
	// Secret keys to sign tokens, each kind has its own
	// Required to be set
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	accessKey  string
	refreshKey string

	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration

	// Repo that owns the stored refresh token on the user record
	userRepo repository.UserRepo
}

func New(cfg Config, userRepo repository.UserRepo) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("both access and refresh secret keys must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		accessKey:  cfg.AccessSecret,
		refreshKey: cfg.RefreshSecret,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		userRepo:   userRepo,
	}, nil
}

// IssuePair signs a fresh access/refresh pair and persists the refresh token
// on the user record. Tokens are returned only if the persist succeeded,
// so there is never an issued refresh token without stored backing state.
func (m *TokenManager) IssuePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	pair, err := m.signPair(user.ID)
	if err != nil {
		return pair, err
	}

	err = m.userRepo.SetRefreshToken(ctx, user.ID, pair.Refresh.Value)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return pair, nil
}

// Rotate issues a new pair and replaces the stored refresh token only if it
// still equals presented. A concurrent rotation that got there first makes
// the swap fail with apperrors.ErrRefreshTokenUsed instead of overwriting.
func (m *TokenManager) Rotate(ctx context.Context, user models.User, presented string) (models.TokenPair, error) {
	pair, err := m.signPair(user.ID)
	if err != nil {
		return pair, err
	}

	err = m.userRepo.SwapRefreshToken(ctx, user.ID, presented, pair.Refresh.Value)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while rotating refresh token. Err: %w", err)
	}

	return pair, nil
}

// Revoke clears the stored refresh token, any outstanding one fails verification
func (m *TokenManager) Revoke(ctx context.Context, userID primitive.ObjectID) error {
	err := m.userRepo.ClearRefreshToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("error while revoking refresh token. Err: %w", err)
	}

	return nil
}

// Parse and validate access token
func (m *TokenManager) ParseAccess(access string) (primitive.ObjectID, error) {
	return m.parse(access, m.accessKey)
}

// Parse and validate refresh token signature and expiry
// Equality with the stored value is the caller's check, not done here
func (m *TokenManager) ParseRefresh(refresh string) (primitive.ObjectID, error) {
	return m.parse(refresh, m.refreshKey)
}

func (m *TokenManager) signPair(userID primitive.ObjectID) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)

	access, accessExpiresAt, err := m.sign(userID, m.accessKey, now, m.accessTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refresh, refreshExpiresAt, err := m.sign(userID, m.refreshKey, now, m.refreshTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}, nil
}

func (m *TokenManager) sign(userID primitive.ObjectID, key string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID: userID.Hex(),
		},
	)

	signed, err := token.SignedString([]byte(key))
	return signed, expiresAt, err
}

func (m *TokenManager) parse(tokenString string, key string) (primitive.ObjectID, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
	)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("token carries malformed user id. Err: %w", err)
	}

	return userID, nil
}
