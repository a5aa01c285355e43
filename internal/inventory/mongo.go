package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"giftbot/entity"
	"giftbot/internal/database"
	"giftbot/lib/sl"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo keeps gift codes in one collection keyed by code key. Its
// CompareAndSwap guards the decrement on (amount, revision).
type Mongo struct {
	collection *mongo.Collection
	log        *slog.Logger
}

func NewMongo(db *database.MongoDB, log *slog.Logger) *Mongo {
	return &Mongo{
		collection: db.Collection(database.CollectionGiftCodes),
		log:        log.With(sl.Module("inventory.mongo")),
	}
}

func (m *Mongo) Get(ctx context.Context, key string) (*entity.GiftCode, error) {
	var code entity.GiftCode
	err := m.collection.FindOne(ctx, bson.D{{"_id", key}}).Decode(&code)
	if database.NotFound(err) {
		return nil, entity.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return &code, nil
}

func (m *Mongo) GetAll(ctx context.Context) ([]*entity.GiftCode, error) {
	cursor, err := m.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	var codes []*entity.GiftCode
	if err = cursor.All(ctx, &codes); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	return codes, nil
}

func (m *Mongo) Save(ctx context.Context, key string, code *entity.GiftCode) error {
	doc := code.Clone()
	doc.Key = key
	opts := options.Replace().SetUpsert(true)
	_, err := m.collection.ReplaceOne(ctx, bson.D{{"_id", key}}, doc, opts)
	if err != nil {
		return fmt.Errorf("mongodb replace: %w", err)
	}
	return nil
}

// CompareAndSwap writes amount and revision of next only while the stored
// record still carries old's amount and revision.
func (m *Mongo) CompareAndSwap(ctx context.Context, key string, old, next *entity.GiftCode) (bool, error) {
	res, err := m.collection.UpdateOne(ctx, swapFilter(key, old), swapUpdate(next))
	if err != nil {
		return false, fmt.Errorf("mongodb update: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func swapFilter(key string, old *entity.GiftCode) bson.D {
	var revision interface{} = old.Revision
	if old.Revision == 0 {
		// records written before revisions existed have no field
		revision = bson.D{{"$in", bson.A{0, nil}}}
	}
	return bson.D{
		{"_id", key},
		{"amount", old.Amount},
		{"revision", revision},
	}
}

func swapUpdate(next *entity.GiftCode) bson.D {
	return bson.D{{"$set", bson.D{
		{"amount", next.Amount},
		{"revision", next.Revision},
	}}}
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	res, err := m.collection.DeleteOne(ctx, bson.D{{"_id", key}})
	if err != nil {
		return fmt.Errorf("mongodb delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return entity.ErrCodeNotFound
	}
	return nil
}

func (m *Mongo) Count(ctx context.Context) (int, error) {
	n, err := m.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongodb count: %w", err)
	}
	return int(n), nil
}
