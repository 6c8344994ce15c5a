package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid user credentials")

	ErrRefreshTokenInvalid = errors.New("refresh token is invalid")
	ErrRefreshTokenUsed    = errors.New("refresh token is expired or used")

	ErrChannelNotFound = errors.New("channel not found")
	ErrVideoNotFound   = errors.New("video not found")

	ErrUploadFailed = errors.New("media upload failed")
)
