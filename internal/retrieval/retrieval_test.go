package retrieval

import (
	"context"
	"testing"

	"github.com/jchristn/verbex/internal/ids"
	"github.com/jchristn/verbex/internal/indexer"
	"github.com/jchristn/verbex/internal/repo"
	"github.com/jchristn/verbex/internal/store/memory"
	"github.com/jchristn/verbex/internal/tokenizer"
)

func newTestEngine(t *testing.T) (*Engine, *indexer.Indexer) {
	t.Helper()
	r := repo.New(memory.New("test"))
	if err := r.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	pipe := tokenizer.New(nil, 0, 0, tokenizer.BasicStopWordRemover{}, tokenizer.BasicLemmatizer{})
	ix := indexer.New(r, pipe, ids.NewGenerator(), 4)
	return New(r, pipe), ix
}

func TestSearch_ORModeRanksByScore(t *testing.T) {
	ctx := context.Background()
	e, ix := newTestEngine(t)

	if _, err := ix.AddDocument(ctx, "", "a.txt", "cat cat cat dog"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDocument(ctx, "", "b.txt", "cat bird"); err != nil {
		t.Fatal(err)
	}

	result, err := e.Search(ctx, Query{Text: "cat"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(result.Hits))
	}
	if result.Hits[0].Score < result.Hits[1].Score {
		t.Errorf("expected documents ordered by descending score, got %+v", result.Hits)
	}
}

func TestSearch_ANDModeNarrowsCandidates(t *testing.T) {
	ctx := context.Background()
	e, ix := newTestEngine(t)

	if _, err := ix.AddDocument(ctx, "", "a.txt", "cat dog"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDocument(ctx, "", "b.txt", "cat bird"); err != nil {
		t.Fatal(err)
	}

	or, err := e.Search(ctx, Query{Text: "cat dog", AndLogic: false})
	if err != nil {
		t.Fatal(err)
	}
	and, err := e.Search(ctx, Query{Text: "cat dog", AndLogic: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(and.Hits) > len(or.Hits) {
		t.Fatalf("AND mode (%d) should never return more hits than OR mode (%d)", len(and.Hits), len(or.Hits))
	}
	if len(and.Hits) != 1 || and.Hits[0].DocumentID == "" {
		t.Fatalf("expected exactly one AND match, got %+v", and.Hits)
	}
}

func TestSearch_EmptyQueryReturnsNoHits(t *testing.T) {
	ctx := context.Background()
	e, ix := newTestEngine(t)
	if _, err := ix.AddDocument(ctx, "", "a.txt", "cat dog"); err != nil {
		t.Fatal(err)
	}
	// "the" and "is" are both stop words; the query becomes empty post-filter.
	result, err := e.Search(ctx, Query{Text: "the is"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("expected no hits for an empty-after-filtering query, got %d", len(result.Hits))
	}
}

func TestSearch_PhraseBonusFavorsConsecutiveTerms(t *testing.T) {
	ctx := context.Background()
	e, ix := newTestEngine(t)

	phraseDoc, err := ix.AddDocument(ctx, "", "phrase.txt", "quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDocument(ctx, "", "scattered.txt", "brown fox quick"); err != nil {
		t.Fatal(err)
	}

	result, err := e.Search(ctx, Query{Text: "quick brown", PhraseSearchBonus: 2.0, SigmoidNormalizationDivisor: 10.0})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(result.Hits))
	}
	var phraseScore, scatteredScore float64
	for _, h := range result.Hits {
		if h.DocumentID == "" {
			t.Fatal("expected non-empty document id")
		}
	}
	phraseScore = result.Hits[0].Score
	scatteredScore = result.Hits[1].Score
	if result.Hits[0].DocumentID != phraseDoc.ID || phraseScore <= scatteredScore {
		t.Errorf("expected the consecutive-term document to rank first: %+v", result.Hits)
	}
}

func TestSearch_ResultsAreTruncatedAndClamped(t *testing.T) {
	ctx := context.Background()
	e, ix := newTestEngine(t)
	for i := 0; i < 5; i++ {
		name := "doc"
		if _, err := ix.AddDocument(ctx, "", name+string(rune('a'+i))+".txt", "cat"); err != nil {
			t.Fatal(err)
		}
	}
	result, err := e.Search(ctx, Query{Text: "cat", MaxResults: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 2 {
		t.Fatalf("got %d hits, want 2 after truncation", len(result.Hits))
	}
	if result.TotalCount < 5 {
		t.Errorf("expected total_count to reflect pre-truncation count, got %d", result.TotalCount)
	}
}
