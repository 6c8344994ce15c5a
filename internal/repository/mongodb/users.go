package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avolkov/mediatube/internal/apperrors"
	"github.com/avolkov/mediatube/internal/models"
	"github.com/avolkov/mediatube/internal/repository"
)

type UserRepo struct {
	C *mongo.Collection
}

func (r *UserRepo) CreateUser(ctx context.Context, p repository.CreateUserParams) (models.User, error) {
	now := time.Now().Truncate(time.Millisecond)
	user := models.User{
		ID:             primitive.NewObjectID(),
		Username:       strings.ToLower(p.Username),
		Email:          p.Email,
		FullName:       p.FullName,
		Avatar:         p.Avatar,
		CoverImage:     p.CoverImage,
		HashedPassword: p.HashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := r.C.InsertOne(ctx, user)
	switch {
	case err == nil:
		return user, nil
	case mongo.IsDuplicateKeyError(err):
		return user, apperrors.ErrUserAlreadyExists
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func (r *UserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getOne(ctx, bson.M{"username": strings.ToLower(username)})
}

func (r *UserRepo) GetByUsernameOrEmail(ctx context.Context, username string, email string) (models.User, error) {
	return r.getOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": strings.ToLower(username)},
		bson.M{"email": email},
	}})
}

func (r *UserRepo) getOne(ctx context.Context, filter bson.M) (models.User, error) {
	var user models.User
	err := r.C.FindOne(ctx, filter).Decode(&user)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func (r *UserRepo) SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	res, err := r.C.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"refreshToken": token,
		"updatedAt":    time.Now().Truncate(time.Millisecond),
	}})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// Compare and swap: the rotation loser must not overwrite the winner's token
func (r *UserRepo) SwapRefreshToken(ctx context.Context, id primitive.ObjectID, old string, next string) error {
	res, err := r.C.UpdateOne(ctx,
		bson.M{"_id": id, "refreshToken": old},
		bson.M{"$set": bson.M{
			"refreshToken": next,
			"updatedAt":    time.Now().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrRefreshTokenUsed
	}
	return nil
}

func (r *UserRepo) ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.C.UpdateByID(ctx, id, bson.M{
		"$unset": bson.M{"refreshToken": ""},
		"$set":   bson.M{"updatedAt": time.Now().Truncate(time.Millisecond)},
	})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id primitive.ObjectID, hashedPassword string) error {
	res, err := r.C.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password":  hashedPassword,
		"updatedAt": time.Now().Truncate(time.Millisecond),
	}})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName string, email string) (models.User, error) {
	set := bson.M{"updatedAt": time.Now().Truncate(time.Millisecond)}
	if fullName != "" {
		set["fullName"] = fullName
	}
	if email != "" {
		set["email"] = email
	}

	return r.findOneAndSet(ctx, id, set)
}

func (r *UserRepo) SetAvatar(ctx context.Context, id primitive.ObjectID, url string) (models.User, error) {
	return r.findOneAndSet(ctx, id, bson.M{
		"avatar":    url,
		"updatedAt": time.Now().Truncate(time.Millisecond),
	})
}

func (r *UserRepo) SetCoverImage(ctx context.Context, id primitive.ObjectID, url string) (models.User, error) {
	return r.findOneAndSet(ctx, id, bson.M{
		"coverImage": url,
		"updatedAt":  time.Now().Truncate(time.Millisecond),
	})
}

func (r *UserRepo) findOneAndSet(ctx context.Context, id primitive.ObjectID, set bson.M) (models.User, error) {
	var user models.User
	err := r.C.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return user, apperrors.ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return user, apperrors.ErrUserAlreadyExists
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func (r *UserRepo) AppendWatchHistory(ctx context.Context, id primitive.ObjectID, videoID primitive.ObjectID) error {
	res, err := r.C.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"watchHistory": videoID},
		"$set":  bson.M{"updatedAt": time.Now().Truncate(time.Millisecond)},
	})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// Join the subscription edges twice: once by channel to count subscribers,
// once by subscriber to count channels this user follows
func (r *UserRepo) ChannelProfile(ctx context.Context, username string, viewer primitive.ObjectID) (models.ChannelProfile, error) {
	var profile models.ChannelProfile

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "username", Value: strings.ToLower(username)},
		}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: subscriptionsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "channel"},
			{Key: "as", Value: "subscribers"},
		}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: subscriptionsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "subscriber"},
			{Key: "as", Value: "subscribedTo"},
		}}},
		bson.D{{Key: "$addFields", Value: bson.D{
			{Key: "subscriberCount", Value: bson.D{{Key: "$size", Value: "$subscribers"}}},
			{Key: "subscribedToCount", Value: bson.D{{Key: "$size", Value: "$subscribedTo"}}},
			{Key: "isSubscribed", Value: bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{viewer, "$subscribers.subscriber"}}}},
				{Key: "then", Value: true},
				{Key: "else", Value: false},
			}}}},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "username", Value: 1},
			{Key: "fullName", Value: 1},
			{Key: "email", Value: 1},
			{Key: "avatar", Value: 1},
			{Key: "coverImage", Value: 1},
			{Key: "subscriberCount", Value: 1},
			{Key: "subscribedToCount", Value: 1},
			{Key: "isSubscribed", Value: 1},
		}}},
	}

	cursor, err := r.C.Aggregate(ctx, pipeline)
	if err != nil {
		return profile, fmt.Errorf("db error: %w", err)
	}

	var channels []models.ChannelProfile
	if err := cursor.All(ctx, &channels); err != nil {
		return profile, fmt.Errorf("db error: %w", err)
	}
	if len(channels) == 0 {
		return profile, apperrors.ErrChannelNotFound
	}

	return channels[0], nil
}

func (r *UserRepo) WatchHistory(ctx context.Context, id primitive.ObjectID) ([]models.WatchedVideo, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "_id", Value: id},
		}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: videosCollection},
			{Key: "localField", Value: "watchHistory"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "watchHistory"},
			{Key: "pipeline", Value: mongo.Pipeline{
				bson.D{{Key: "$lookup", Value: bson.D{
					{Key: "from", Value: usersCollection},
					{Key: "localField", Value: "owner"},
					{Key: "foreignField", Value: "_id"},
					{Key: "as", Value: "owner"},
					{Key: "pipeline", Value: mongo.Pipeline{
						bson.D{{Key: "$project", Value: bson.D{
							{Key: "username", Value: 1},
							{Key: "fullName", Value: 1},
							{Key: "avatar", Value: 1},
						}}},
					}},
				}}},
				bson.D{{Key: "$addFields", Value: bson.D{
					{Key: "owner", Value: bson.D{{Key: "$first", Value: "$owner"}}},
				}}},
			}},
		}}},
	}

	cursor, err := r.C.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	var users []struct {
		WatchHistory []models.WatchedVideo `bson:"watchHistory"`
	}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(users) == 0 {
		return nil, apperrors.ErrUserNotFound
	}

	return users[0].WatchHistory, nil
}
