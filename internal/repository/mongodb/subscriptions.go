package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avolkov/mediatube/internal/models"
)

type SubscriptionRepo struct {
	C *mongo.Collection
}

func (r *SubscriptionRepo) Subscribe(ctx context.Context, subscriber primitive.ObjectID, channel primitive.ObjectID) (models.Subscription, error) {
	var sub models.Subscription

	// Upsert keeps the operation idempotent: resubscribing returns the existing edge
	err := r.C.FindOneAndUpdate(ctx,
		bson.M{"subscriber": subscriber, "channel": channel},
		bson.M{"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"subscriber": subscriber,
			"channel":    channel,
			"createdAt":  time.Now().Truncate(time.Millisecond),
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&sub)
	if err != nil {
		return sub, fmt.Errorf("db error: %w", err)
	}

	return sub, nil
}

func (r *SubscriptionRepo) Unsubscribe(ctx context.Context, subscriber primitive.ObjectID, channel primitive.ObjectID) error {
	_, err := r.C.DeleteOne(ctx, bson.M{"subscriber": subscriber, "channel": channel})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) IsSubscribed(ctx context.Context, subscriber primitive.ObjectID, channel primitive.ObjectID) (bool, error) {
	err := r.C.FindOne(ctx, bson.M{"subscriber": subscriber, "channel": channel}).Err()

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return false, nil
	default:
		return false, fmt.Errorf("db error: %w", err)
	}
}
