package storage

import (
	"context"
	"strings"
	"testing"
)

func TestObjectKeyIsStableAndSlugged(t *testing.T) {
	body := []byte("some image bytes")
	first := ObjectKey("42", "My Holiday Photo!.JPG", body, "")
	second := ObjectKey("42", "My Holiday Photo!.JPG", body, "")
	if first != second {
		t.Fatalf("expected stable key, got %q and %q", first, second)
	}
	if !strings.HasPrefix(first, "42/my-holiday-photo-") || !strings.HasSuffix(first, ".jpg") {
		t.Fatalf("unexpected key %q", first)
	}
	blurred := ObjectKey("42", "My Holiday Photo!.JPG", body, "blurred")
	if blurred == first || !strings.Contains(blurred, "-blurred") {
		t.Fatalf("expected variant in key, got %q", blurred)
	}
	other := ObjectKey("42", "My Holiday Photo!.JPG", []byte("different"), "")
	if other == first {
		t.Fatalf("expected digest to change the key")
	}
}

func TestMemoryStorePutDelete(t *testing.T) {
	store := NewMemoryStore("https://cdn.example.com/")
	url, err := store.Put(context.Background(), "1/a.png", "image/png", []byte("x"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "https://cdn.example.com/1/a.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if _, mime, ok := store.Get("1/a.png"); !ok || mime != "image/png" {
		t.Fatalf("expected object stored with mime, got %v %q", ok, mime)
	}
	if err := store.Delete(context.Background(), "1/a.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}
