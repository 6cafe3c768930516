package auth

import (
	"context"
	"testing"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	s.Create(ctx, "a", 1)
	s.Create(ctx, "b", 1)
	s.Create(ctx, "c", 2)

	if id, ok, _ := s.Lookup(ctx, "b"); !ok || id != 1 {
		t.Fatalf("expected session b for actor 1, got %d %v", id, ok)
	}

	n, err := s.RevokeAll(ctx, 1)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 revoked, got %d (%v)", n, err)
	}
	if _, ok, _ := s.Lookup(ctx, "a"); ok {
		t.Error("expected session a to be gone")
	}
	if _, ok, _ := s.Lookup(ctx, "c"); !ok {
		t.Error("expected other actor's session to survive")
	}
}

func TestRevokeBatch_KeepsIndexSet(t *testing.T) {
	keys, members := revokeBatch([]string{"a", "b"})
	if len(keys) != 2 || keys[0] != "session:a" || keys[1] != "session:b" {
		t.Fatalf("unexpected session keys %v", keys)
	}
	for _, k := range keys {
		if k == userSessionsKey(1) {
			t.Fatal("the index set must never be deleted whole")
		}
	}
	if len(members) != 2 || members[0] != "a" || members[1] != "b" {
		t.Errorf("expected only the listed ids to leave the index, got %v", members)
	}
}
