package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"giftbot/entity"
	"giftbot/internal/database"
	"giftbot/lib/sl"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	collection *mongo.Collection
	log        *slog.Logger
}

// NewMongo ensures the unique (user_id, gift_code_key) index exists.
func NewMongo(ctx context.Context, db *database.MongoDB, log *slog.Logger) (*Mongo, error) {
	collection := db.Collection(database.CollectionRedemptions)
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{"user_id", 1}, {"gift_code_key", 1}},
		Options: options.Index().SetUnique(true).SetName("user_code_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("mongo ledger: creating index: %w", err)
	}
	return &Mongo{
		collection: collection,
		log:        log.With(sl.Module("ledger.mongo")),
	}, nil
}

func (m *Mongo) Exists(ctx context.Context, userID int64, codeKey string) (bool, error) {
	filter := bson.D{{"user_id", userID}, {"gift_code_key", codeKey}}
	n, err := m.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo ledger: exists: %w", err)
	}
	return n > 0, nil
}

func (m *Mongo) Insert(ctx context.Context, userID int64, codeKey string) error {
	_, err := m.collection.InsertOne(ctx, entity.Redemption{
		UserID:     userID,
		CodeKey:    codeKey,
		RedeemedAt: time.Now().UTC(),
	})
	return insertError(err)
}

// insertError maps a unique index violation to entity.ErrAlreadyRedeemed.
func insertError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrAlreadyRedeemed
	}
	return fmt.Errorf("mongo ledger: insert: %w", err)
}

func (m *Mongo) Count(ctx context.Context, codeKey string) (int64, error) {
	n, err := m.collection.CountDocuments(ctx, bson.D{{"gift_code_key", codeKey}})
	if err != nil {
		return 0, fmt.Errorf("mongo ledger: count: %w", err)
	}
	return n, nil
}

// Close is a no-op; the shared client is closed by its owner.
func (m *Mongo) Close() error {
	return nil
}
