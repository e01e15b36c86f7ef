package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jchristn/verbex/internal/store/memory"
)

func TestRepository_GuardsBeforeOpen(t *testing.T) {
	r := New(memory.New("test"))
	if _, err := r.GetMetadata(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("got %v, want ErrNotOpen", err)
	}
}

func TestRepository_GuardsAfterDispose(t *testing.T) {
	ctx := context.Background()
	r := New(memory.New("test"))
	if err := r.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetMetadata(ctx); !errors.Is(err, ErrDisposed) {
		t.Fatalf("got %v, want ErrDisposed", err)
	}
	if err := r.Open(ctx); !errors.Is(err, ErrDisposed) {
		t.Fatalf("reopen after dispose: got %v, want ErrDisposed", err)
	}
}

func TestRepository_OpenThenOperate(t *testing.T) {
	ctx := context.Background()
	r := New(memory.New("test"))
	if err := r.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer r.Close(ctx)

	ids, err := r.AddOrGetTermsBatch(ctx, []string{"cat"})
	if err != nil {
		t.Fatal(err)
	}
	if ids["cat"] == "" {
		t.Fatal("expected non-empty term id")
	}
}

func TestRepository_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := New(memory.New("test"))
	if err := r.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(ctx); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}
