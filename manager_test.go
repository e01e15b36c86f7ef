package verbex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil)

	idx, err := m.Create(ctx, NewConfig("catalog"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.CloseAll(context.Background()) })

	got, err := m.Get(ctx, "catalog")
	if err != nil {
		t.Fatal(err)
	}
	if got != idx {
		t.Fatal("Get returned a different index instance than Create")
	}

	if _, err := m.Create(ctx, NewConfig("catalog")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Create: got %v, want ErrDuplicate", err)
	}

	if err := m.Delete(ctx, "catalog"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "catalog"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: got %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, "catalog"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestManager_ListConfigurations(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil)
	t.Cleanup(func() { _ = m.CloseAll(context.Background()) })

	for _, name := range []string{"one", "two"} {
		if _, err := m.Create(ctx, NewConfig(name)); err != nil {
			t.Fatal(err)
		}
	}
	cfgs := m.ListConfigurations()
	if len(cfgs) != 2 {
		t.Fatalf("got %d configurations, want 2", len(cfgs))
	}
}

func TestManager_DiscoverRegistersPersistentIndices(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	// Build a real on-disk index under root, then close everything so a
	// fresh Manager has to find it by scanning.
	seed := NewManager(nil)
	cfg := NewConfig("discovered")
	cfg.StorageMode = StorageOnDisk
	cfg.StorageDirectory = filepath.Join(root, "discovered")
	cfg.StopWordRemover = NewBasicStopWordRemover()
	idx, err := seed.Create(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	docID, err := idx.AddDocument(ctx, "doc.txt", "the discoverable content")
	if err != nil {
		t.Fatal(err)
	}
	if err := seed.CloseAll(ctx); err != nil {
		t.Fatal(err)
	}

	// A non-index subdirectory must be ignored.
	if err := os.MkdirAll(filepath.Join(root, "junk"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(nil)
	names, err := m.Discover(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "discovered" {
		t.Fatalf("got %v, want exactly [discovered]", names)
	}

	reopened, err := m.Get(ctx, "discovered")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.CloseAll(context.Background()) })

	doc, err := reopened.GetDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil {
		t.Fatal("expected discovered index to contain the seeded document")
	}

	// The sidecar recorded has_stop_word_remover; the rewired default must
	// filter query stop words the same way the documents were indexed.
	result, err := reopened.Search(ctx, "the", SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("stop word query on discovered index: got %d hits, want 0", len(result.Hits))
	}
	// "the" was never indexed, so an AND query only matches if the query
	// pipeline drops it as a stop word.
	mixed, err := reopened.Search(ctx, "the discoverable", SearchOptions{AndLogic: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(mixed.Hits) != 1 || mixed.Hits[0].DocumentID != docID {
		t.Fatalf("AND query with stop word on discovered index: got %+v, want single hit for %s", mixed.Hits, docID)
	}
}

func TestManager_ReloadReplacesInstance(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := NewManager(nil)
	t.Cleanup(func() { _ = m.CloseAll(context.Background()) })

	cfg := NewConfig("reload")
	cfg.StorageMode = StorageOnDisk
	cfg.StorageDirectory = filepath.Join(dir, "reload")
	first, err := m.Create(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.AddDocument(ctx, "doc.txt", "survives reload"); err != nil {
		t.Fatal(err)
	}

	second, err := m.Reload(ctx, "reload")
	if err != nil {
		t.Fatal(err)
	}
	if second == first {
		t.Fatal("Reload returned the disposed instance")
	}
	if _, err := first.GetStatistics(ctx); !errors.Is(err, ErrDisposed) {
		t.Fatalf("old instance after Reload: got %v, want ErrDisposed", err)
	}
	stats, err := second.GetStatistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.DocumentCount != 1 {
		t.Fatalf("got %d documents after reload, want 1", stats.DocumentCount)
	}
}
