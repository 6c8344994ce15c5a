package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/avolkov/mediatube/internal/apperrors"
	"github.com/avolkov/mediatube/internal/models"
)

type VideoRepo struct {
	C *mongo.Collection
}

func (r *VideoRepo) CreateVideo(ctx context.Context, video models.Video) (models.Video, error) {
	if video.ID.IsZero() {
		video.ID = primitive.NewObjectID()
	}
	if video.CreatedAt.IsZero() {
		video.CreatedAt = time.Now().Truncate(time.Millisecond)
	}

	_, err := r.C.InsertOne(ctx, video)
	if err != nil {
		return video, fmt.Errorf("db error: %w", err)
	}

	return video, nil
}

func (r *VideoRepo) GetByID(ctx context.Context, id primitive.ObjectID) (models.Video, error) {
	var video models.Video
	err := r.C.FindOne(ctx, bson.M{"_id": id}).Decode(&video)

	switch {
	case err == nil:
		return video, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return video, apperrors.ErrVideoNotFound
	default:
		return video, fmt.Errorf("db error: %w", err)
	}
}
