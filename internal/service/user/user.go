package user

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avolkov/mediatube/internal/apperrors"
	"github.com/avolkov/mediatube/internal/logger"
	"github.com/avolkov/mediatube/internal/media"
	"github.com/avolkov/mediatube/internal/models"
	"github.com/avolkov/mediatube/internal/repository"
	"github.com/avolkov/mediatube/internal/service/auth"
)

type UserService struct {
	hasher   auth.PasswordHasher
	storage  repository.Storage
	uploader media.Uploader
	logger   logger.Logger
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage, uploader media.Uploader, l logger.Logger) *UserService {
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}
	if l == nil {
		l = logger.NewNoOp()
	}

	return &UserService{
		hasher:   hasher,
		storage:  storage,
		uploader: uploader,
		logger:   l,
	}
}

type RegisterParams struct {
	FullName string
	Email    string
	Username string
	Password string

	// Locally staged image files, avatar is required
	AvatarPath     string
	CoverImagePath string
}

// CheckAvailable reports apperrors.ErrUserAlreadyExists when the username
// or email is already taken. Runs before any file is accepted so a
// conflicting registration fails without touching uploads.
func (s *UserService) CheckAvailable(ctx context.Context, username string, email string) error {
	_, err := s.storage.User().GetByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return apperrors.ErrUserAlreadyExists
	case errors.Is(err, apperrors.ErrUserNotFound):
		return nil
	default:
		return err
	}
}

// Register creates a user with uploaded avatar and optional cover image.
// Order matters: the duplicate check runs before any upload so a conflicting
// registration never spends media-host calls. Avatar upload failure is fatal,
// cover image upload failure degrades to a user without a cover.
func (s *UserService) Register(ctx context.Context, p RegisterParams) (models.User, error) {
	var user models.User

	if err := s.CheckAvailable(ctx, p.Username, p.Email); err != nil {
		return user, err
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	avatarURL, err := s.uploader.Upload(ctx, p.AvatarPath)
	if err != nil {
		return user, fmt.Errorf("%w: avatar: %w", apperrors.ErrUploadFailed, err)
	}

	coverURL := ""
	if p.CoverImagePath != "" {
		coverURL, err = s.uploader.Upload(ctx, p.CoverImagePath)
		if err != nil {
			// Cover image is optional, a failed upload must not block registration
			s.logger.Warn("cover image upload failed", "username", p.Username, "error", err.Error())
			coverURL = ""
		}
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:       p.Username,
		Email:          p.Email,
		FullName:       p.FullName,
		Avatar:         avatarURL,
		CoverImage:     coverURL,
		HashedPassword: hash,
	})
	if err != nil {
		return user, err
	}

	// Fetch the stored record back so the response reflects exactly what was persisted
	user, err = s.storage.User().GetByID(ctx, user.ID)
	if err != nil {
		return user, fmt.Errorf("user created but could not be fetched back. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword string, newPassword string) error {
	user, err := s.storage.User().GetByID(ctx, userID)
	if err != nil {
		return err
	}

	err = s.hasher.Compare(user.HashedPassword, oldPassword)
	if err != nil {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	return s.storage.User().UpdatePassword(ctx, userID, hash)
}

// UpdateAccount changes fullName and/or email, empty values keep the stored ones
func (s *UserService) UpdateAccount(ctx context.Context, userID primitive.ObjectID, fullName string, email string) (models.User, error) {
	return s.storage.User().UpdateProfile(ctx, userID, fullName, email)
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID primitive.ObjectID, localPath string) (models.User, error) {
	url, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: avatar: %w", apperrors.ErrUploadFailed, err)
	}

	return s.storage.User().SetAvatar(ctx, userID, url)
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID primitive.ObjectID, localPath string) (models.User, error) {
	url, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: cover image: %w", apperrors.ErrUploadFailed, err)
	}

	return s.storage.User().SetCoverImage(ctx, userID, url)
}

// ChannelProfile returns the channel page for username as seen by viewer
// viewer may be primitive.NilObjectID, isSubscribed is then always false
func (s *UserService) ChannelProfile(ctx context.Context, username string, viewer primitive.ObjectID) (models.ChannelProfile, error) {
	return s.storage.User().ChannelProfile(ctx, username, viewer)
}

func (s *UserService) WatchHistory(ctx context.Context, userID primitive.ObjectID) ([]models.WatchedVideo, error) {
	return s.storage.User().WatchHistory(ctx, userID)
}

// RecordWatch appends an existing video to the user's watch history
func (s *UserService) RecordWatch(ctx context.Context, userID primitive.ObjectID, videoID primitive.ObjectID) error {
	_, err := s.storage.Video().GetByID(ctx, videoID)
	if err != nil {
		return err
	}

	return s.storage.User().AppendWatchHistory(ctx, userID, videoID)
}

// ToggleSubscription flips the (viewer, channel) subscription edge
// Returns whether the viewer is subscribed after the call
func (s *UserService) ToggleSubscription(ctx context.Context, viewer primitive.ObjectID, channelUsername string) (bool, error) {
	channel, err := s.storage.User().GetByUsername(ctx, channelUsername)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		return false, apperrors.ErrChannelNotFound
	default:
		return false, err
	}

	subscribed, err := s.storage.Subscription().IsSubscribed(ctx, viewer, channel.ID)
	if err != nil {
		return false, err
	}

	if subscribed {
		return false, s.storage.Subscription().Unsubscribe(ctx, viewer, channel.ID)
	}

	_, err = s.storage.Subscription().Subscribe(ctx, viewer, channel.ID)
	return err == nil, err
}
