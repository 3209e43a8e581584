package storage

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestLocal_StoreIsContentAddressed(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	u1, err := l.Store(ctx, []byte("payload"), "consent.pdf")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	u2, err := l.Store(ctx, []byte("payload"), "renamed.pdf")
	if err != nil {
		t.Fatalf("store again: %v", err)
	}
	if u1 != u2 {
		t.Errorf("identical payloads must share a URL: %s vs %s", u1, u2)
	}
	if !strings.HasSuffix(u1, ".pdf") {
		t.Errorf("expected .pdf suffix, got %s", u1)
	}

	u3, err := l.Store(ctx, []byte("other payload"), "consent.pdf")
	if err != nil {
		t.Fatalf("store third: %v", err)
	}
	if u3 == u1 {
		t.Error("different payloads must not share a URL")
	}

	path := strings.TrimPrefix(u1, "file://")
	if data, err := os.ReadFile(path); err != nil || string(data) != "payload" {
		t.Fatalf("stored file mismatch: %q err %v", data, err)
	}
}

func TestLocal_Delete(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	u, err := l.Store(ctx, []byte("x"), "doc.pdf")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := l.Delete(ctx, u); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(strings.TrimPrefix(u, "file://")); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}
	// Idempotent.
	if err := l.Delete(ctx, u); err != nil {
		t.Errorf("second delete should be a no-op: %v", err)
	}

	if err := l.Delete(ctx, "file:///etc/passwd"); err == nil {
		t.Error("delete outside the root must be rejected")
	}
}
