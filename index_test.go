package verbex

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func newOpenIndex(t *testing.T, cfg Config) *Index {
	t.Helper()
	ix, err := NewIndex(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := ix.Open(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ix.Close(context.Background()) })
	return ix
}

// Basic OR search over a small corpus.
func TestSearch_BasicORSearch(t *testing.T) {
	ctx := context.Background()
	ix := newOpenIndex(t, NewConfig("basic-or"))

	doc1, err := ix.AddDocument(ctx, "doc1", "apple banana cherry")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDocument(ctx, "doc2", "banana cherry date"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDocument(ctx, "doc3", "cherry date elderberry"); err != nil {
		t.Fatal(err)
	}

	cherry, err := ix.Search(ctx, "cherry", SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(cherry.Hits) != 3 {
		t.Fatalf("cherry: got %d hits, want 3", len(cherry.Hits))
	}

	apple, err := ix.Search(ctx, "apple", SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(apple.Hits) != 1 || apple.Hits[0].DocumentID != doc1 {
		t.Fatalf("apple: got %+v, want single hit for %s", apple.Hits, doc1)
	}
}

// AND mode only matches documents containing every query term.
func TestSearch_ANDSearch(t *testing.T) {
	ctx := context.Background()
	ix := newOpenIndex(t, NewConfig("and-search"))

	doc1, err := ix.AddDocument(ctx, "doc1", "apple banana cherry")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDocument(ctx, "doc2", "banana cherry date"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDocument(ctx, "doc3", "cherry date elderberry"); err != nil {
		t.Fatal(err)
	}

	hit, err := ix.Search(ctx, "apple banana", SearchOptions{AndLogic: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(hit.Hits) != 1 || hit.Hits[0].DocumentID != doc1 {
		t.Fatalf("apple+banana AND: got %+v, want single hit for %s", hit.Hits, doc1)
	}

	none, err := ix.Search(ctx, "apple elderberry banana", SearchOptions{AndLogic: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(none.Hits) != 0 {
		t.Fatalf("apple+elderberry+banana AND: got %d hits, want 0", len(none.Hits))
	}
}

// With the basic lemmatizer configured, queries for dictionary forms find
// documents indexed from inflected forms.
func TestSearch_LemmatizerIntegration(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig("lemma")
	cfg.Lemmatizer = NewBasicLemmatizer()
	ix := newOpenIndex(t, cfg)

	if _, err := ix.AddDocument(ctx, "doc", "cats running walked children were going"); err != nil {
		t.Fatal(err)
	}

	for _, query := range []string{"cat", "run", "walk", "child", "be", "go"} {
		result, err := ix.Search(ctx, query, SearchOptions{})
		if err != nil {
			t.Fatalf("query %q: %v", query, err)
		}
		if len(result.Hits) != 1 {
			t.Errorf("query %q: got %d hits, want 1", query, len(result.Hits))
		}
	}
}

// Stop words are dropped both at indexing and at query time.
func TestSearch_StopWordIntegration(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig("stopwords")
	cfg.StopWordRemover = NewBasicStopWordRemover()
	ix := newOpenIndex(t, cfg)

	if _, err := ix.AddDocument(ctx, "doc", "the cat and the dog are running in the garden"); err != nil {
		t.Fatal(err)
	}

	for _, query := range []string{"cat", "dog", "garden"} {
		result, err := ix.Search(ctx, query, SearchOptions{})
		if err != nil {
			t.Fatalf("query %q: %v", query, err)
		}
		if len(result.Hits) != 1 {
			t.Errorf("query %q: got %d hits, want 1", query, len(result.Hits))
		}
	}

	for _, query := range []string{"the", "and"} {
		result, err := ix.Search(ctx, query, SearchOptions{})
		if err != nil {
			t.Fatalf("query %q: %v", query, err)
		}
		if len(result.Hits) != 0 {
			t.Errorf("stop word %q: got %d hits, want 0", query, len(result.Hits))
		}
	}
}

// A label filter restricts hits to documents carrying every given label.
func TestSearch_LabelFilter(t *testing.T) {
	ctx := context.Background()
	ix := newOpenIndex(t, NewConfig("labels"))

	techDoc, err := ix.AddDocument(ctx, "tech.txt", "machine learning models")
	if err != nil {
		t.Fatal(err)
	}
	sciDoc, err := ix.AddDocument(ctx, "sci.txt", "machine learning theory")
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.AddLabel(ctx, techDoc, "tech"); err != nil {
		t.Fatal(err)
	}
	if err := ix.AddLabel(ctx, sciDoc, "science"); err != nil {
		t.Fatal(err)
	}

	result, err := ix.Search(ctx, "machine", SearchOptions{Labels: []string{"tech"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 1 || result.Hits[0].DocumentID != techDoc {
		t.Fatalf("label filter: got %+v, want single hit for %s", result.Hits, techDoc)
	}
}

// Label comparisons are case-insensitive but storage preserves the
// original casing.
func TestLabel_CaseInsensitiveComparisonCasePreservingStorage(t *testing.T) {
	ctx := context.Background()
	ix := newOpenIndex(t, NewConfig("label-case"))

	doc, err := ix.AddDocument(ctx, "doc.txt", "irrelevant content")
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.AddLabel(ctx, doc, "Tech"); err != nil {
		t.Fatal(err)
	}

	labels, err := ix.GetLabels(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 1 || labels[0].Label != "Tech" {
		t.Fatalf("got %+v, want case-preserved label %q", labels, "Tech")
	}

	result, err := ix.Search(ctx, "irrelevant", SearchOptions{Labels: []string{"tech"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("case-insensitive label filter: got %d hits, want 1", len(result.Hits))
	}
}

// On-disk mode survives flush/close/reopen with identical documents and
// search results.
func TestPersistence_FlushCloseReopenPreservesState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := NewConfig("persist")
	cfg.StorageMode = StorageOnDisk
	cfg.StorageDirectory = dir

	ix, err := NewIndex(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Open(ctx); err != nil {
		t.Fatal(err)
	}
	docID, err := ix.AddDocument(ctx, "doc.txt", "persistent full text search")
	if err != nil {
		t.Fatal(err)
	}
	before, err := ix.GetDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(ctx); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewIndex(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := reopened.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer reopened.Close(ctx)

	stats, err := reopened.GetStatistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.DocumentCount != 1 {
		t.Fatalf("got %d documents after reopen, want 1", stats.DocumentCount)
	}

	after, err := reopened.GetDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if after == nil || after.ContentSHA256 != before.ContentSHA256 {
		t.Fatalf("got %+v, want matching sha256 %q", after, before.ContentSHA256)
	}

	result, err := reopened.Search(ctx, "persistent", SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 1 || result.Hits[0].DocumentID != docID {
		t.Fatalf("got %+v after reopen, want single hit for %s", result.Hits, docID)
	}
}

// MaxResults clamps the hit list while TotalCount reflects pre-truncation
// cardinality.
func TestSearch_MaxResultsClampsButTotalCountReflectsAll(t *testing.T) {
	ctx := context.Background()
	ix := newOpenIndex(t, NewConfig("truncation"))

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("doc-%d.txt", i)
		if _, err := ix.AddDocument(ctx, name, "shared keyword content"); err != nil {
			t.Fatal(err)
		}
	}

	result, err := ix.Search(ctx, "shared", SearchOptions{MaxResults: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 2 {
		t.Fatalf("got %d hits, want clamped to 2", len(result.Hits))
	}
	if result.TotalCount != 5 {
		t.Fatalf("got total_count %d, want 5", result.TotalCount)
	}
}

// A query that is empty after tokenization returns zero results.
func TestSearch_EmptyQueryAfterTokenizationReturnsNothing(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig("empty-query")
	cfg.StopWordRemover = NewBasicStopWordRemover()
	ix := newOpenIndex(t, cfg)

	if _, err := ix.AddDocument(ctx, "doc.txt", "the and a"); err != nil {
		t.Fatal(err)
	}

	result, err := ix.Search(ctx, "the and", SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalCount != 0 || len(result.Hits) != 0 {
		t.Fatalf("got %+v, want empty result", result)
	}
}

// AddDocumentWithID rejects a reused id with ErrDuplicate.
func TestAddDocumentWithID_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	ix := newOpenIndex(t, NewConfig("dup"))

	if err := ix.AddDocumentWithID(ctx, "fixed-id", "a.txt", "first content"); err != nil {
		t.Fatal(err)
	}
	err := ix.AddDocumentWithID(ctx, "fixed-id", "b.txt", "second content")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("got %v, want ErrDuplicate", err)
	}
}

// Closed indices reject every operation with ErrDisposed.
func TestClose_SubsequentOperationsFailWithDisposed(t *testing.T) {
	ctx := context.Background()
	ix, err := NewIndex(NewConfig("disposed"))
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDocument(ctx, "a.txt", "content"); !errors.Is(err, ErrDisposed) {
		t.Fatalf("got %v on disposed index, want ErrDisposed", err)
	}
}

// Adding then removing a document leaves no trace of it anywhere.
func TestAddThenRemove_LeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	ix := newOpenIndex(t, NewConfig("add-remove"))

	docID, err := ix.AddDocument(ctx, "a.txt", "ephemeral content here")
	if err != nil {
		t.Fatal(err)
	}
	removed, err := ix.RemoveDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Fatal("expected RemoveDocument to report true")
	}

	doc, err := ix.GetDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if doc != nil {
		t.Fatalf("got %+v, want nil after removal", doc)
	}

	result, err := ix.Search(ctx, "ephemeral", SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("got %+v, want no hits after removal", result.Hits)
	}

	stats, err := ix.GetStatistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.DocumentCount != 0 || stats.PostingCount != 0 {
		t.Fatalf("got %+v, want empty statistics after removal", stats)
	}
}
