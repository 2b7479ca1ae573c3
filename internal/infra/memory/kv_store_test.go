package memory

import (
	"context"
	"testing"
)

func TestKVStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore()

	if _, ok, _ := store.Get(ctx, "s1", "userEmail"); ok {
		t.Fatalf("expected missing key")
	}

	if err := store.Set(ctx, "s1", "userEmail", "a@b.com"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := store.Get(ctx, "s1", "userEmail")
	if err != nil || !ok || value != "a@b.com" {
		t.Fatalf("get = %q, %v, %v", value, ok, err)
	}

	// Sessions are isolated from each other.
	if _, ok, _ := store.Get(ctx, "s2", "userEmail"); ok {
		t.Fatalf("expected session isolation")
	}

	if err := store.Clear(ctx, "s1", "userEmail"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "s1", "userEmail"); ok {
		t.Fatalf("expected key removed")
	}
}
