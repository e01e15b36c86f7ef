package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jchristn/verbex/internal/model"
	"github.com/jchristn/verbex/internal/store"
)

func nowUTC() time.Time { return time.Now().UTC() }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s := New("test-index", path, 4)
	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestOpen_CreatesSchemaAndMetadata(t *testing.T) {
	s := openTestStore(t)
	md, err := s.GetMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if md.Name != "test-index" {
		t.Errorf("got name %q, want %q", md.Name, "test-index")
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("second Open should be a no-op, got %v", err)
	}
}

func TestInsertDocumentRow_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	doc := model.Document{ID: "doc-1", Name: "one.txt", IndexedUTC: nowUTC(), LastModifiedUTC: nowUTC(), CreatedUTC: nowUTC()}
	if err := s.InsertDocumentRow(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertDocumentRow(ctx, doc); err != store.ErrDuplicate {
		t.Fatalf("got %v, want store.ErrDuplicate", err)
	}
}

func TestWithWriteLock_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.WithWriteLock(ctx, func(ctx context.Context) error {
		return s.InsertDocumentRow(ctx, model.Document{
			ID: "doc-1", Name: "one.txt", IndexedUTC: nowUTC(), LastModifiedUTC: nowUTC(), CreatedUTC: nowUTC(),
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("expected committed document to be readable, got %v", err)
	}
}

func TestWithWriteLock_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sentinel := errBoom{}
	err := s.WithWriteLock(ctx, func(ctx context.Context) error {
		if err := s.InsertDocumentRow(ctx, model.Document{
			ID: "doc-1", Name: "one.txt", IndexedUTC: nowUTC(), LastModifiedUTC: nowUTC(), CreatedUTC: nowUTC(),
		}); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("got %v, want sentinel error", err)
	}
	if _, err := s.GetDocument(ctx, "doc-1"); err != store.ErrNotFound {
		t.Fatalf("expected rollback, got %v", err)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestTermFrequencyLifecycle_PrunesOrphan(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	termIDs, err := s.AddOrGetTermsBatch(ctx, []string{"cat"})
	if err != nil {
		t.Fatal(err)
	}
	deltas := map[string]store.TermDelta{termIDs["cat"]: {DocFreqDelta: 1, TotalFreqDelta: 2}}
	if err := s.IncrementTermFrequenciesBatch(ctx, deltas); err != nil {
		t.Fatal(err)
	}
	if _, found, err := s.TermStats(ctx, "cat"); err != nil || !found {
		t.Fatalf("expected term to be found, err=%v found=%v", err, found)
	}
	if err := s.DecrementTermFrequenciesBatch(ctx, deltas); err != nil {
		t.Fatal(err)
	}
	if _, found, err := s.TermStats(ctx, "cat"); err != nil {
		t.Fatal(err)
	} else if found {
		t.Error("expected term to be pruned at zero/zero")
	}
}

func TestDeleteDocumentCascade(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	doc := model.Document{ID: "doc-1", Name: "one.txt", IndexedUTC: nowUTC(), LastModifiedUTC: nowUTC(), CreatedUTC: nowUTC()}
	if err := s.InsertDocumentRow(ctx, doc); err != nil {
		t.Fatal(err)
	}
	termIDs, err := s.AddOrGetTermsBatch(ctx, []string{"cat"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.InsertPostingsBatch(ctx, []model.Posting{{DocumentID: "doc-1", TermID: termIDs["cat"], TermFrequency: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddLabel(ctx, "doc-1", "important"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteDocumentCascade(ctx, "doc-1"); err != nil {
		t.Fatal(err)
	}
	postings, err := s.GetDocumentPostings(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 0 {
		t.Errorf("expected cascade-deleted postings, got %d", len(postings))
	}
	if err := s.DeleteDocumentCascade(ctx, "doc-1"); err != store.ErrNotFound {
		t.Fatalf("got %v, want store.ErrNotFound", err)
	}
}

func TestSearchCandidates_ANDModeRequiresAllTerms(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"d1", "d2"} {
		if err := s.InsertDocumentRow(ctx, model.Document{
			ID: id, Name: id + ".txt", IndexedUTC: nowUTC(), LastModifiedUTC: nowUTC(), CreatedUTC: nowUTC(),
		}); err != nil {
			t.Fatal(err)
		}
	}
	termIDs, err := s.AddOrGetTermsBatch(ctx, []string{"cat", "dog"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.InsertPostingsBatch(ctx, []model.Posting{
		{DocumentID: "d1", TermID: termIDs["cat"], TermFrequency: 1},
		{DocumentID: "d2", TermID: termIDs["cat"], TermFrequency: 1},
		{DocumentID: "d2", TermID: termIDs["dog"], TermFrequency: 1},
	}); err != nil {
		t.Fatal(err)
	}

	and, err := s.SearchCandidates(ctx, store.SearchFilter{TermIDs: []string{termIDs["cat"], termIDs["dog"]}, AndLogic: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(and) != 1 || and[0].Document.ID != "d2" {
		t.Fatalf("got %+v, want exactly d2", and)
	}
}

func TestIndexConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := IndexConfig{Description: "demo", StorageMode: "on_disk", MinTokenLength: 2, MaxTokenLength: 40, HasLemmatizer: true}
	if err := WriteIndexConfig(dir, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := ReadIndexConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != cfg.Description || got.MinTokenLength != cfg.MinTokenLength {
		t.Fatalf("got %+v, want %+v", got, cfg)
	}
}
