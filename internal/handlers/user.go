package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avolkov/mediatube/internal/apperrors"
	"github.com/avolkov/mediatube/internal/handlers/render"
	"github.com/avolkov/mediatube/internal/media"
	"github.com/avolkov/mediatube/internal/models"
	"github.com/avolkov/mediatube/internal/service/user"
)

// 32 MB is plenty for a pair of profile images
const maxUploadMemory = 32 << 20

// User service
type UserService interface {
	// Register user with uploaded avatar (required) and cover image (optional)
	// Has to return apperrors.ErrUserAlreadyExists on duplicate username or email
	Register(ctx context.Context, p user.RegisterParams) (models.User, error)

	// Has to return apperrors.ErrUserAlreadyExists when username or email is taken
	CheckAvailable(ctx context.Context, username string, email string) error

	// Has to return apperrors.ErrInvalidCredentials if the old password mismatches
	ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword string, newPassword string) error

	UpdateAccount(ctx context.Context, userID primitive.ObjectID, fullName string, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID primitive.ObjectID, localPath string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID primitive.ObjectID, localPath string) (models.User, error)

	// Has to return apperrors.ErrChannelNotFound for unknown channels
	ChannelProfile(ctx context.Context, username string, viewer primitive.ObjectID) (models.ChannelProfile, error)
	ToggleSubscription(ctx context.Context, viewer primitive.ObjectID, channelUsername string) (bool, error)

	WatchHistory(ctx context.Context, userID primitive.ObjectID) ([]models.WatchedVideo, error)
	RecordWatch(ctx context.Context, userID primitive.ObjectID, videoID primitive.ObjectID) error
}

type UserHandler struct {
	users UserService
}

func NewUser(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterForm struct {
		FullName string `json:"fullName" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Username string `json:"username" validate:"required,min=2,max=50"`
		Password string `json:"password" validate:"required,min=8"`
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		render.Error(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}

	form := RegisterForm{
		FullName: r.FormValue("fullName"),
		Email:    r.FormValue("email"),
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}
	if err := render.Validate(w, form); err != nil {
		return
	}

	// Conflicts are reported before the avatar file is even required
	if err := h.users.CheckAvailable(r.Context(), form.Username, form.Email); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.Error(w, http.StatusConflict, "User with the username or email already exists")
		default:
			render.Error(w, http.StatusInternalServerError, "Something went wrong while registering the user")
		}
		return
	}

	avatarPath, ok := stageFormFile(w, r, "avatar", true)
	if !ok {
		return
	}
	defer func() { _ = os.Remove(avatarPath) }()

	coverPath, ok := stageFormFile(w, r, "coverImage", false)
	if !ok {
		return
	}
	if coverPath != "" {
		defer func() { _ = os.Remove(coverPath) }()
	}

	created, err := h.users.Register(r.Context(), user.RegisterParams{
		FullName:       form.FullName,
		Email:          form.Email,
		Username:       form.Username,
		Password:       form.Password,
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.Error(w, http.StatusConflict, "User with the username or email already exists")
		case errors.Is(err, apperrors.ErrUploadFailed):
			render.Error(w, http.StatusBadRequest, "Failed to upload avatar")
		default:
			render.Error(w, http.StatusInternalServerError, "Something went wrong while registering the user")
		}
		return
	}

	render.JSON(w, http.StatusCreated, created.Public(), "User registered successfully")
}

func (h *UserHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	type ChangePasswordRequest struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8"`
	}

	data, err := render.BindAndValidate[ChangePasswordRequest](w, r)
	if err != nil {
		return
	}

	u, _ := UserFromContext(r.Context())

	err = h.users.ChangePassword(r.Context(), u.ID, data.OldPassword, data.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.Error(w, http.StatusBadRequest, "Invalid old password")
		default:
			render.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	render.JSON(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

func (h *UserHandler) currentUser(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	render.JSON(w, http.StatusOK, u.Public(), "Current user fetched successfully")
}

func (h *UserHandler) updateAccount(w http.ResponseWriter, r *http.Request) {
	type UpdateAccountRequest struct {
		FullName string `json:"fullName" validate:"required_without=Email"`
		Email    string `json:"email" validate:"required_without=FullName,omitempty,email"`
	}

	data, err := render.BindAndValidate[UpdateAccountRequest](w, r)
	if err != nil {
		return
	}

	u, _ := UserFromContext(r.Context())

	updated, err := h.users.UpdateAccount(r.Context(), u.ID, data.FullName, data.Email)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.Error(w, http.StatusConflict, "User with the email already exists")
		default:
			render.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	render.JSON(w, http.StatusOK, updated.Public(), "Account details updated successfully")
}

func (h *UserHandler) updateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.users.UpdateAvatar)
}

func (h *UserHandler) updateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.users.UpdateCoverImage)
}

func (h *UserHandler) updateImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update func(ctx context.Context, userID primitive.ObjectID, localPath string) (models.User, error),
) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		render.Error(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}

	path, ok := stageFormFile(w, r, field, true)
	if !ok {
		return
	}
	defer func() { _ = os.Remove(path) }()

	u, _ := UserFromContext(r.Context())

	updated, err := update(r.Context(), u.ID, path)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUploadFailed):
			render.Error(w, http.StatusBadRequest, "Failed to upload "+field)
		default:
			render.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	render.JSON(w, http.StatusOK, updated.Public(), "Image updated successfully")
}

func (h *UserHandler) channelProfile(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	viewer := primitive.NilObjectID
	if u, ok := UserFromContext(r.Context()); ok {
		viewer = u.ID
	}

	profile, err := h.users.ChannelProfile(r.Context(), username, viewer)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrChannelNotFound):
			render.Error(w, http.StatusNotFound, "Channel does not exist")
		default:
			render.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	render.JSON(w, http.StatusOK, profile, "User channel fetched successfully")
}

func (h *UserHandler) toggleSubscription(w http.ResponseWriter, r *http.Request) {
	type ToggleResponse struct {
		Subscribed bool `json:"subscribed"`
	}

	u, _ := UserFromContext(r.Context())

	subscribed, err := h.users.ToggleSubscription(r.Context(), u.ID, r.PathValue("username"))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrChannelNotFound):
			render.Error(w, http.StatusNotFound, "Channel does not exist")
		default:
			render.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	render.JSON(w, http.StatusOK, ToggleResponse{Subscribed: subscribed}, "Subscription toggled successfully")
}

func (h *UserHandler) watchHistory(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	history, err := h.users.WatchHistory(r.Context(), u.ID)
	if err != nil {
		render.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if history == nil {
		history = []models.WatchedVideo{}
	}
	render.JSON(w, http.StatusOK, history, "Watch history fetched successfully")
}

func (h *UserHandler) recordWatch(w http.ResponseWriter, r *http.Request) {
	videoID, err := primitive.ObjectIDFromHex(r.PathValue("videoID"))
	if err != nil {
		render.Error(w, http.StatusBadRequest, "Invalid video id")
		return
	}

	u, _ := UserFromContext(r.Context())

	err = h.users.RecordWatch(r.Context(), u.ID, videoID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrVideoNotFound):
			render.Error(w, http.StatusNotFound, "Video not found")
		default:
			render.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	render.JSON(w, http.StatusOK, struct{}{}, "Watch history updated successfully")
}

// stageFormFile saves the named multipart file to a temp path
// Writes the error response itself, the bool reports whether to continue
// Returns empty path without error for a missing optional file
func stageFormFile(w http.ResponseWriter, r *http.Request, field string, required bool) (string, bool) {
	file, header, err := r.FormFile(field)
	switch {
	case err == nil:
	case errors.Is(err, http.ErrMissingFile):
		if required {
			render.Error(w, http.StatusBadRequest, capitalized(field)+" file required")
			return "", false
		}
		return "", true
	default:
		render.Error(w, http.StatusBadRequest, "Failed to read "+field+" file")
		return "", false
	}
	defer closeFile(file)

	path, err := media.StageFile(file, header.Filename)
	if err != nil {
		render.Error(w, http.StatusInternalServerError, "Failed to store uploaded file")
		return "", false
	}

	return path, true
}

func closeFile(f multipart.File) {
	_ = f.Close()
}

func capitalized(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
