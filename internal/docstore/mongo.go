package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nerrad567/playout-core/internal/infrastructure/config"
)

const defaultMongoConnectTimeout = 10 * time.Second

// MongoStore maps each collection onto a MongoDB collection. Document ids
// become _id; the JSON body is converted to BSON through relaxed extended
// JSON so selectors can address fields natively.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials MongoDB and verifies the primary answers.
//
// Parameters:
//   - ctx: Bounds the connection attempt together with cfg.ConnectTimeout
//   - cfg: Mongo section of config.yaml
//
// Returns:
//   - *MongoStore: Ready store
//   - error: If the client cannot connect or ping
func ConnectMongo(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultMongoConnectTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// EnsureIndexes creates ascending single-field indexes on collection.
func (s *MongoStore) EnsureIndexes(ctx context.Context, collection string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(fields))
	for _, f := range fields {
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: f, Value: 1}}})
	}
	if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating %s indexes: %w", collection, err)
	}
	return nil
}

// Find returns all matching documents ordered by id.
func (s *MongoStore) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	q, err := mongoFilter(filter)
	if err != nil {
		return nil, err
	}

	cur, err := s.db.Collection(collection).Find(ctx, q,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer cur.Close(ctx) //nolint:errcheck // Read-only cursor

	var docs []Document
	for cur.Next(ctx) {
		doc, err := fromBSON(cur.Current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", collection, err)
	}
	return docs, nil
}

// FindOne returns the first matching document by id order.
func (s *MongoStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	q, err := mongoFilter(filter)
	if err != nil {
		return Document{}, err
	}

	raw, err := s.db.Collection(collection).FindOne(ctx, q,
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("querying %s: %w", collection, err)
	}
	return fromBSON(raw)
}

// InsertOne adds a new document.
func (s *MongoStore) InsertOne(ctx context.Context, collection string, doc Document) error {
	body, err := toBSON(doc)
	if err != nil {
		return err
	}

	_, err = s.db.Collection(collection).InsertOne(ctx, body)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// ReplaceOne replaces an existing document.
func (s *MongoStore) ReplaceOne(ctx context.Context, collection string, doc Document) error {
	body, err := toBSON(doc)
	if err != nil {
		return err
	}

	res, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": doc.ID}, body)
	if err != nil {
		return fmt.Errorf("replacing %s/%s: %w", collection, doc.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes all matching documents.
func (s *MongoStore) Remove(ctx context.Context, collection string, filter Filter) (int, error) {
	q, err := mongoFilter(filter)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Collection(collection).DeleteMany(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("removing from %s: %w", collection, err)
	}
	return int(res.DeletedCount), nil
}

// BulkWrite issues one ordered BulkWrite call for all ops.
func (s *MongoStore) BulkWrite(ctx context.Context, collection string, ops []WriteOp) (BulkResult, error) {
	models, err := mongoWriteModels(ops)
	if err != nil {
		return BulkResult{}, err
	}
	if len(models) == 0 {
		return BulkResult{}, nil
	}

	res, err := s.db.Collection(collection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return BulkResult{}, fmt.Errorf("bulk write to %s: %w", collection, err)
	}
	return BulkResult{
		Upserted: int(res.UpsertedCount + res.MatchedCount),
		Deleted:  int(res.DeletedCount),
	}, nil
}

// HealthCheck pings the primary.
func (s *MongoStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mongoWriteModels(ops []WriteOp) ([]mongo.WriteModel, error) {
	if err := validateOps(ops); err != nil {
		return nil, err
	}

	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case OpReplace:
			body, err := toBSON(op.Doc)
			if err != nil {
				return nil, err
			}
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": op.Doc.ID}).
				SetReplacement(body).
				SetUpsert(true))
		case OpDeleteMany:
			if len(op.IDs) == 0 {
				continue
			}
			models = append(models, mongo.NewDeleteManyModel().
				SetFilter(bson.M{"_id": bson.M{"$in": op.IDs}}))
		}
	}
	return models, nil
}

// mongoFilter translates a Filter into a BSON query document.
func mongoFilter(filter Filter) (bson.D, error) {
	keys, err := validateFilter(filter)
	if err != nil {
		return nil, err
	}

	q := bson.D{}
	for _, key := range keys {
		switch v := filter[key].(type) {
		case []string:
			q = append(q, bson.E{Key: key, Value: bson.M{"$in": v}})
		default:
			q = append(q, bson.E{Key: key, Value: v})
		}
	}
	return q, nil
}

// toBSON converts a JSON document into BSON with _id first.
func toBSON(doc Document) (bson.D, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	var body bson.D
	if err := bson.UnmarshalExtJSON(doc.Data, false, &body); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, doc.ID, err)
	}

	out := make(bson.D, 0, len(body)+1)
	out = append(out, bson.E{Key: "_id", Value: doc.ID})
	for _, e := range body {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return out, nil
}

// fromBSON converts a stored BSON document back into JSON. The _id element
// is kept so model types tagged json:"_id" decode their id.
func fromBSON(raw bson.Raw) (Document, error) {
	id, ok := raw.Lookup("_id").StringValueOK()
	if !ok {
		return Document{}, fmt.Errorf("%w: non-string _id", ErrInvalidDocument)
	}

	var body bson.D
	if err := bson.Unmarshal(raw, &body); err != nil {
		return Document{}, fmt.Errorf("decoding %s: %w", id, err)
	}

	data, err := bson.MarshalExtJSON(body, false, false)
	if err != nil {
		return Document{}, fmt.Errorf("encoding %s: %w", id, err)
	}
	return Document{ID: id, Data: data}, nil
}
