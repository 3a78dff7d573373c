package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo defaults.
const (
	DefaultMongoDatabase   = "tafarru3"
	DefaultMongoCollection = "sessions"
	defaultMongoDocID      = "recent"
)

// MongoConfig configures [OpenMongo].
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// mongoList is the single document holding the session list. Version is
// incremented on every write for optimistic concurrency.
type mongoList struct {
	ID       string    `bson:"_id"`
	Version  int64     `bson:"version"`
	Sessions []Session `bson:"sessions"`
}

// MongoBackend stores the session list in one MongoDB document.
type MongoBackend struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
}

// NewMongoBackend uses coll from an existing client. Close does not
// disconnect the client.
func NewMongoBackend(coll *mongo.Collection) *MongoBackend {
	return &MongoBackend{coll: coll}
}

// OpenMongo connects to cfg.URI and verifies the connection.
func OpenMongo(ctx context.Context, cfg MongoConfig) (*MongoBackend, error) {
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultMongoCollection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(cfg.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoBackend{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		owned:  true,
	}, nil
}

func (b *MongoBackend) Load(ctx context.Context) ([]Session, error) {
	doc, err := b.find(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Sessions, nil
}

// Update applies fn with a compare-and-swap on the document version.
func (b *MongoBackend) Update(ctx context.Context, fn UpdateFunc) error {
	for range maxTxRetries {
		doc, err := b.find(ctx)
		if err != nil {
			return err
		}
		next, err := fn(doc.Sessions)
		if err != nil {
			return err
		}
		if next == nil {
			next = []Session{}
		}

		if doc.Version == 0 {
			_, err := b.coll.InsertOne(ctx, mongoList{ID: defaultMongoDocID, Version: 1, Sessions: next})
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			if err != nil {
				return fmt.Errorf("insert sessions: %w", err)
			}
			return nil
		}

		filter := bson.M{"_id": defaultMongoDocID, "version": doc.Version}
		update := bson.M{"$set": bson.M{"sessions": next, "version": doc.Version + 1}}
		res, err := b.coll.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("update sessions: %w", err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return ErrTooManyConflicts
}

func (b *MongoBackend) Close() error {
	if b.owned && b.client != nil {
		return b.client.Disconnect(context.Background())
	}
	return nil
}

func (b *MongoBackend) find(ctx context.Context) (mongoList, error) {
	var doc mongoList
	err := b.coll.FindOne(ctx, bson.M{"_id": defaultMongoDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return mongoList{ID: defaultMongoDocID, Sessions: []Session{}}, nil
	}
	if err != nil {
		return mongoList{}, fmt.Errorf("find sessions: %w", err)
	}
	if doc.Sessions == nil {
		doc.Sessions = []Session{}
	}
	return doc, nil
}

var _ Backend = (*MongoBackend)(nil)
