package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID             primitive.ObjectID   `bson:"_id"`
	Username       string               `bson:"username"`
	Email          string               `bson:"email"`
	FullName       string               `bson:"fullName"`
	Avatar         string               `bson:"avatar"`
	CoverImage     string               `bson:"coverImage,omitempty"`
	HashedPassword string               `bson:"password"`
	RefreshToken   string               `bson:"refreshToken,omitempty"`
	WatchHistory   []primitive.ObjectID `bson:"watchHistory,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

// User representation that is safe to return to clients
// Never carries the password hash or the stored refresh token
type PublicUser struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID.Hex(),
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// Channel page of a user as seen by another (or anonymous) viewer
// Counts are derived from subscription edges, not stored on the user
type ChannelProfile struct {
	Username          string `bson:"username" json:"username"`
	FullName          string `bson:"fullName" json:"fullName"`
	Email             string `bson:"email" json:"email"`
	Avatar            string `bson:"avatar" json:"avatar"`
	CoverImage        string `bson:"coverImage,omitempty" json:"coverImage,omitempty"`
	SubscriberCount   int64  `bson:"subscriberCount" json:"subscriberCount"`
	SubscribedToCount int64  `bson:"subscribedToCount" json:"subscribedToCount"`
	IsSubscribed      bool   `bson:"isSubscribed" json:"isSubscribed"`
}
