package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Video struct {
	ID          primitive.ObjectID `bson:"_id"`
	Owner       primitive.ObjectID `bson:"owner"`
	VideoFile   string             `bson:"videoFile"`
	Thumbnail   string             `bson:"thumbnail"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Duration    int64              `bson:"duration"`
	Views       int64              `bson:"views"`
	IsPublished bool               `bson:"isPublished"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

// Owner fields denormalized into each watch history item
type VideoOwner struct {
	Username string `bson:"username" json:"username"`
	FullName string `bson:"fullName" json:"fullName"`
	Avatar   string `bson:"avatar" json:"avatar"`
}

// Watch history item: video joined with its owner public fields
type WatchedVideo struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	VideoFile   string             `bson:"videoFile" json:"videoFile"`
	Thumbnail   string             `bson:"thumbnail" json:"thumbnail"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Duration    int64              `bson:"duration" json:"duration"`
	Views       int64              `bson:"views" json:"views"`
	Owner       VideoOwner         `bson:"owner" json:"owner"`
}
