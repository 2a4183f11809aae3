package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeColl struct {
	docs     []any
	err      error
	deadline bool
}

func (f *fakeColl) InsertOne(ctx context.Context, doc any, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, doc)
	return &mongo.InsertOneResult{}, nil
}

func TestMongoRecorder_RecordStatus(t *testing.T) {
	fc := &fakeColl{}
	r := &MongoRecorder{coll: fc, timeout: time.Second}

	ev := &StatusChange{RequestID: 7, OldStatus: "pending", NewStatus: "approved", ChangedBy: 3}
	if err := r.RecordStatus(context.Background(), ev); err != nil {
		t.Fatalf("RecordStatus: %v", err)
	}
	if len(fc.docs) != 1 {
		t.Fatalf("want 1 insert, got %d", len(fc.docs))
	}
	if ev.Timestamp.IsZero() {
		t.Fatalf("timestamp should be filled")
	}
	if !fc.deadline {
		t.Fatalf("insert should run under a deadline")
	}
}

func TestMongoRecorder_WrapsError(t *testing.T) {
	boom := errors.New("boom")
	r := &MongoRecorder{coll: &fakeColl{err: boom}, timeout: time.Second}
	err := r.RecordStatus(context.Background(), &StatusChange{RequestID: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped boom, got %v", err)
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).RecordStatus(context.Background(), &StatusChange{}); err != nil {
		t.Fatalf("Nop returned %v", err)
	}
}
