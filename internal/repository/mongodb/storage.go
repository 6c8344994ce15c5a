package mongodb

import (
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/avolkov/mediatube/internal/repository"
)

const (
	usersCollection         = "users"
	subscriptionsCollection = "subscriptions"
	videosCollection        = "videos"
)

type Storage struct {
	db *mongo.Database
}

func NewStorage(db *mongo.Database) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{C: s.db.Collection(usersCollection)}
}

func (s *Storage) Subscription() repository.SubscriptionRepo {
	return &SubscriptionRepo{C: s.db.Collection(subscriptionsCollection)}
}

func (s *Storage) Video() repository.VideoRepo {
	return &VideoRepo{C: s.db.Collection(videosCollection)}
}
