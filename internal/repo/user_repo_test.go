package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/thaihand/carry-backend/internal/domain"
)

func TestUsers_CreateAndLookup(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	u := &domain.User{Username: "alice", Email: "Alice@Example.com"}
	if err := CreateUser(ctx, db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	got, err := GetUserByEmail(ctx, db, " alice@example.COM ")
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetUserByEmail case-insensitive failed: %v %+v", err, got)
	}
	if got, err := GetUserByUsername(ctx, db, "alice"); err != nil || got.ID != u.ID {
		t.Fatalf("GetUserByUsername failed: %v %+v", err, got)
	}
	if got, err := GetUserByID(ctx, db, u.ID); err != nil || got.Email != "Alice@Example.com" {
		t.Fatalf("GetUserByID failed: %v %+v", err, got)
	}
	if _, err := GetUserByEmail(ctx, db, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUser_DuplicateMapsToErrDuplicate(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	if err := CreateUser(ctx, db, &domain.User{Username: "bob", Email: "bob@x"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := CreateUser(ctx, db, &domain.User{Username: "bob2", Email: "bob@x"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on email, got %v", err)
	}
}

func TestUsersByID(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	a := &domain.User{Username: "a", Email: "a@x"}
	b := &domain.User{Username: "b", Email: "b@x"}
	_ = CreateUser(ctx, db, a)
	_ = CreateUser(ctx, db, b)

	m, err := UsersByID(ctx, db, []int{a.ID, b.ID, 999})
	if err != nil {
		t.Fatalf("UsersByID: %v", err)
	}
	if len(m) != 2 || m[a.ID].Username != "a" || m[b.ID].Username != "b" {
		t.Fatalf("unexpected map: %+v", m)
	}
	if m, err := UsersByID(ctx, db, nil); err != nil || len(m) != 0 {
		t.Fatalf("empty ids should return empty map, got %v %v", m, err)
	}
}
