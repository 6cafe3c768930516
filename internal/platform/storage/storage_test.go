package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func exerciseGateway(t *testing.T, g Gateway) {
	t.Helper()
	ctx := context.Background()
	key := "documents/abc.pdf"

	if ok, err := g.Exists(ctx, key); err != nil || ok {
		t.Fatalf("expected absent key, got %v (%v)", ok, err)
	}
	if _, err := g.Open(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}

	if err := g.Put(ctx, key, "application/pdf", strings.NewReader("%PDF-1.4"), 8); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, _ := g.Exists(ctx, key); !ok {
		t.Fatal("expected key to exist after put")
	}

	rc, err := g.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4" {
		t.Errorf("unexpected content %q", data)
	}

	if err := g.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := g.Exists(ctx, key); ok {
		t.Error("expected key to be gone")
	}
	if err := g.Delete(ctx, key); err != nil {
		t.Errorf("deleting an absent key should succeed, got %v", err)
	}
}

func TestMemoryGateway(t *testing.T) {
	exerciseGateway(t, NewMemoryGateway())
}

func TestDiskGateway(t *testing.T) {
	g, err := NewDiskGateway(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exerciseGateway(t, g)
}

func TestDiskGateway_RejectsTraversal(t *testing.T) {
	g, _ := NewDiskGateway(t.TempDir())
	ctx := context.Background()
	for _, key := range []string{"../escape.pdf", "documents/../../x", "", `a\b`} {
		if err := g.Put(ctx, key, "", strings.NewReader("x"), 1); err == nil {
			t.Errorf("expected key %q to be rejected", key)
		}
	}
}

func TestMemoryGateway_FaultInjection(t *testing.T) {
	g := NewMemoryGateway()
	g.PutErr = errors.New("disk full")
	if err := g.Put(context.Background(), "k", "", strings.NewReader("x"), 1); err == nil {
		t.Fatal("expected injected error")
	}
	if g.PutCount() != 1 || g.Len() != 0 {
		t.Errorf("expected one failed attempt and nothing stored, got %d/%d", g.PutCount(), g.Len())
	}
}
