package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eduxora/stageflow/pkg/api"
)

// MongoSnapshotStore is a SnapshotStore backed by a MongoDB collection,
// one document per request.
type MongoSnapshotStore struct {
	coll *mongo.Collection
}

// Ensure it implements SnapshotStore.
var _ SnapshotStore = (*MongoSnapshotStore)(nil)

// NewMongoSnapshotStore creates a Mongo-backed snapshot store.
// dbName defaults to "stageflow" if empty, collName defaults to "snapshots".
func NewMongoSnapshotStore(client *mongo.Client, dbName, collName string) *MongoSnapshotStore {
	if dbName == "" {
		dbName = "stageflow"
	}
	if collName == "" {
		collName = "snapshots"
	}

	return &MongoSnapshotStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoSnapshotDoc struct {
	ID        string `bson:"_id"`
	Request   []byte `bson:"request,omitempty"`
	RequestAt int64  `bson:"request_at"`
	Current   []byte `bson:"current_stage,omitempty"`
	CurrentAt int64  `bson:"current_at"`
}

func (s *MongoSnapshotStore) SaveRequest(ctx context.Context, req *api.WorkflowRequest, at time.Time) error {
	data, err := encodeValue(req)
	if err != nil {
		return err
	}
	return s.upsert(ctx, req.ID, bson.M{
		"request":    data,
		"request_at": unixNanos(at),
	})
}

func (s *MongoSnapshotStore) SaveCurrentStage(ctx context.Context, requestID string, cur *api.CurrentStage, at time.Time) error {
	data, err := encodeValue(cur)
	if err != nil {
		return err
	}
	return s.upsert(ctx, requestID, bson.M{
		"current_stage": data,
		"current_at":    unixNanos(at),
	})
}

func (s *MongoSnapshotStore) upsert(ctx context.Context, id string, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

func (s *MongoSnapshotStore) GetSnapshot(ctx context.Context, requestID string) (*api.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc mongoSnapshotDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": requestID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	return buildSnapshot(requestID,
		doc.Request, fromUnixNanos(doc.RequestAt),
		doc.Current, fromUnixNanos(doc.CurrentAt),
	)
}

func (s *MongoSnapshotStore) Invalidate(ctx context.Context, requestID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": requestID})
	return err
}
