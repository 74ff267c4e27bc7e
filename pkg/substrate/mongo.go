package substrate

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSubstrate stores records in a single collection with a unique
// compound (scope, id) index. Compare-and-swap is a filtered replace on
// (scope, id, version), which MongoDB applies atomically per document.
type MongoSubstrate struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// mongoDoc is the stored document shape.
type mongoDoc struct {
	Scope   string `bson:"scope"`
	ID      string `bson:"node_id"`
	Version int    `bson:"version"`
	Data    []byte `bson:"data"`
}

// NewMongo connects to MongoDB and ensures the unique key index exists.
func NewMongo(ctx context.Context, cfg MongoConfig) (*MongoSubstrate, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "scope", Value: 1}, {Key: "node_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	return &MongoSubstrate{client: client, coll: coll}, nil
}

func keyFilter(key Key) bson.D {
	return bson.D{{Key: "scope", Value: key.Scope}, {Key: "node_id", Value: key.ID}}
}

// Get returns the record for key, ErrNotFound if absent.
func (m *MongoSubstrate) Get(ctx context.Context, key Key) (Record, error) {
	var doc mongoDoc
	err := m.coll.FindOne(ctx, keyFilter(key)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("mongo find %s/%s: %w", key.Scope, key.ID, err)
	}
	return Record{Key: key, Version: doc.Version, Data: doc.Data}, nil
}

// Put inserts a record; the unique index turns duplicate keys into ErrExists.
func (m *MongoSubstrate) Put(ctx context.Context, rec Record) error {
	_, err := m.coll.InsertOne(ctx, mongoDoc{
		Scope:   rec.Key.Scope,
		ID:      rec.Key.ID,
		Version: rec.Version,
		Data:    rec.Data,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("mongo insert %s/%s: %w", rec.Key.Scope, rec.Key.ID, err)
	}
	return nil
}

// CompareAndSwap replaces the document only when the stored version matches.
// A zero match count is disambiguated with a follow-up Get.
func (m *MongoSubstrate) CompareAndSwap(ctx context.Context, rec Record, expected int) error {
	filter := bson.D{
		{Key: "scope", Value: rec.Key.Scope},
		{Key: "node_id", Value: rec.Key.ID},
		{Key: "version", Value: expected},
	}
	res, err := m.coll.ReplaceOne(ctx, filter, mongoDoc{
		Scope:   rec.Key.Scope,
		ID:      rec.Key.ID,
		Version: rec.Version,
		Data:    rec.Data,
	})
	if err != nil {
		return fmt.Errorf("mongo replace %s/%s: %w", rec.Key.Scope, rec.Key.ID, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := m.Get(ctx, rec.Key); err == ErrNotFound {
		return ErrNotFound
	}
	return ErrVersionMismatch
}

// Scan streams matching documents through fn.
func (m *MongoSubstrate) Scan(ctx context.Context, scope string, fn func(Record) error) error {
	filter := bson.D{}
	if scope != "" {
		filter = bson.D{{Key: "scope", Value: scope}}
	}
	cur, err := m.coll.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongo scan: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc mongoDoc
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("mongo decode: %w", err)
		}
		rec := Record{Key: Key{Scope: doc.Scope, ID: doc.ID}, Version: doc.Version, Data: doc.Data}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return cur.Err()
}

// Close disconnects the client.
func (m *MongoSubstrate) Close() error {
	return m.client.Disconnect(context.Background())
}

// Ensure MongoSubstrate implements Substrate.
var _ Substrate = (*MongoSubstrate)(nil)
