package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avolkov/mediatube/internal/models"
)

// Storage aggregates collection scoped repositories
type Storage interface {
	User() UserRepo
	Subscription() SubscriptionRepo
	Video() VideoRepo
}

type CreateUserParams struct {
	Username       string
	Email          string
	FullName       string
	Avatar         string
	CoverImage     string
	HashedPassword string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the same username or email exists must return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, p CreateUserParams) (models.User, error)

	// Get user by id, username or any of username/email
	// If user not found must return apperrors.ErrUserNotFound
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByUsernameOrEmail(ctx context.Context, username string, email string) (models.User, error)

	// Replace the stored refresh token unconditionally (login)
	SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error

	// Replace the stored refresh token only if it still equals old (rotation)
	// Must return apperrors.ErrRefreshTokenUsed if the stored value changed underneath
	SwapRefreshToken(ctx context.Context, id primitive.ObjectID, old string, next string) error

	// Unset the stored refresh token (logout)
	ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error

	UpdatePassword(ctx context.Context, id primitive.ObjectID, hashedPassword string) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName string, email string) (models.User, error)
	SetAvatar(ctx context.Context, id primitive.ObjectID, url string) (models.User, error)
	SetCoverImage(ctx context.Context, id primitive.ObjectID, url string) (models.User, error)

	// Append video to the end of the user's watch history
	AppendWatchHistory(ctx context.Context, id primitive.ObjectID, videoID primitive.ObjectID) error

	// Channel page aggregation: subscriber counts and viewer membership
	// viewer may be primitive.NilObjectID for anonymous viewers
	// If channel not found must return apperrors.ErrChannelNotFound
	ChannelProfile(ctx context.Context, username string, viewer primitive.ObjectID) (models.ChannelProfile, error)

	// Watch history aggregation: stored video refs joined with owner public fields
	WatchHistory(ctx context.Context, id primitive.ObjectID) ([]models.WatchedVideo, error)
}

// Subscription repository interface
type SubscriptionRepo interface {
	// Create subscription edge, idempotent for an existing edge
	Subscribe(ctx context.Context, subscriber primitive.ObjectID, channel primitive.ObjectID) (models.Subscription, error)

	Unsubscribe(ctx context.Context, subscriber primitive.ObjectID, channel primitive.ObjectID) error

	IsSubscribed(ctx context.Context, subscriber primitive.ObjectID, channel primitive.ObjectID) (bool, error)
}

// Video repository interface
type VideoRepo interface {
	CreateVideo(ctx context.Context, video models.Video) (models.Video, error)

	// If video not found must return apperrors.ErrVideoNotFound
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Video, error)
}
