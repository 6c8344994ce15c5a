package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Subscription edge: subscriber follows channel
type Subscription struct {
	ID         primitive.ObjectID `bson:"_id"`
	Subscriber primitive.ObjectID `bson:"subscriber"`
	Channel    primitive.ObjectID `bson:"channel"`
	CreatedAt  time.Time          `bson:"createdAt"`
}
