package domain

import (
	"testing"
	"time"
)

func TestIdempotency_UniquePerUserScopeKey(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	now := time.Now().UTC()

	rec := &Idempotency{ID: "id-1", UserID: 1, Scope: "requests", Key: "k1", ResourceID: 10, Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert valid: %v", err)
	}
	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.UserID != 1 || got.Scope != "requests" || got.ResourceID != 10 || got.Status != 201 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt should be set automatically")
	}

	dup := &Idempotency{ID: "id-2", UserID: 1, Scope: "requests", Key: "k1", ResourceID: 11, Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on (user_id, scope, key)")
	}

	other := &Idempotency{ID: "id-3", UserID: 2, Scope: "requests", Key: "k1", ResourceID: 12, Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("same key for another user should be allowed: %v", err)
	}
}
