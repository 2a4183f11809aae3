// Package history records request status transitions to an append-only
// audit collection. Recording is best effort: callers log failures and carry
// on, so the relational store stays authoritative for the current status.
package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionStatus is the collection status changes are written to.
const CollectionStatus = "request_status_history"

// StatusChange is one applied request status transition.
type StatusChange struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID int                `bson:"request_id"    json:"requestId"`
	OldStatus string             `bson:"old_status"    json:"oldStatus"`
	NewStatus string             `bson:"new_status"    json:"newStatus"`
	ChangedBy int                `bson:"changed_by"    json:"changedBy"`
	Timestamp time.Time          `bson:"timestamp"     json:"timestamp"`
}

// Recorder persists status changes.
type Recorder interface {
	RecordStatus(ctx context.Context, ev *StatusChange) error
}

// Nop discards every change. It is used when no history store is configured.
type Nop struct{}

// RecordStatus implements Recorder.
func (Nop) RecordStatus(context.Context, *StatusChange) error { return nil }

// inserter is the subset of *mongo.Collection the recorder needs.
type inserter interface {
	InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoRecorder writes status changes to a MongoDB collection.
type MongoRecorder struct {
	coll    inserter
	timeout time.Duration
}

// NewMongoRecorder returns a recorder writing to CollectionStatus in database.
func NewMongoRecorder(client *mongo.Client, database string) *MongoRecorder {
	return &MongoRecorder{
		coll:    client.Database(database).Collection(CollectionStatus),
		timeout: 5 * time.Second,
	}
}

// RecordStatus inserts ev, bounded by the recorder timeout. A zero Timestamp
// is set to the current time.
func (r *MongoRecorder) RecordStatus(ctx context.Context, ev *StatusChange) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// Connect dials MongoDB at uri and verifies the connection with a ping.
// The caller owns the returned client and must Disconnect it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
