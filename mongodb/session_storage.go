package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/cartbuilder/session"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type sessionDocument struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// SessionStorage implements session.Storage on a MongoDB collection, one
// document per key.
type SessionStorage struct {
	collection *mongo.Collection
}

// NewSessionStorage creates a SessionStorage on db's sessions collection.
func NewSessionStorage(db *mongo.Database) *SessionStorage {
	return &SessionStorage{collection: db.Collection(SessionsCollection)}
}

func (r *SessionStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var doc sessionDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from MongoDB: %w", key, err)
	}
	return doc.Value, nil
}

func (r *SessionStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s in MongoDB: %w", key, err)
	}
	return nil
}

func (r *SessionStorage) Delete(ctx context.Context, key string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete %s from MongoDB: %w", key, err)
	}
	return nil
}

// Not a session.MultiStorage: two upserts are not atomic outside a
// replica-set transaction, so Store.SaveSession takes its rollback path.
var _ session.Storage = (*SessionStorage)(nil)
