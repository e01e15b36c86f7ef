// Package retrieval implements query preparation, candidate selection, and
// BM25-style scoring.
package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jchristn/verbex/internal/model"
	"github.com/jchristn/verbex/internal/repo"
	"github.com/jchristn/verbex/internal/store"
	"github.com/jchristn/verbex/internal/tokenizer"
)

// Query describes one search request, already validated by the caller
// (max results clamped, etc.).
type Query struct {
	Text                        string
	MaxResults                  int
	AndLogic                    bool
	Labels                      []string
	Tags                        map[string]string
	PhraseSearchBonus           float64
	SigmoidNormalizationDivisor float64
	IncludeDocuments            bool
}

// Engine runs searches against a repository facade using a shared tokenizer
// pipeline for query preparation.
type Engine struct {
	repo *repo.Repository
	pipe *tokenizer.Pipeline
}

// New builds an Engine.
func New(r *repo.Repository, pipe *tokenizer.Pipeline) *Engine {
	return &Engine{repo: r, pipe: pipe}
}

// Search executes q and returns a ranked SearchResult.
func (e *Engine) Search(ctx context.Context, q Query) (model.SearchResult, error) {
	start := time.Now()

	queryTerms, orderedTerms := e.prepareQuery(q.Text)
	if len(queryTerms) == 0 {
		return model.SearchResult{Hits: []model.SearchHit{}, SearchTime: time.Since(start)}, nil
	}

	termIDsByText, err := e.repo.ResolveTermIDs(ctx, orderedTerms)
	if err != nil {
		return model.SearchResult{}, err
	}
	// AND mode requires every query term to exist in the vocabulary: a term
	// with no postings anywhere can never be satisfied, so the result is
	// empty without touching candidate selection.
	if len(termIDsByText) == 0 || (q.AndLogic && len(termIDsByText) < len(orderedTerms)) {
		return model.SearchResult{Hits: []model.SearchHit{}, SearchTime: time.Since(start)}, nil
	}

	termIDs := make([]string, 0, len(termIDsByText))
	idToText := make(map[string]string, len(termIDsByText))
	for text, id := range termIDsByText {
		termIDs = append(termIDs, id)
		idToText[id] = text
	}

	candidates, err := e.repo.SearchCandidates(ctx, store.SearchFilter{
		TermIDs:  termIDs,
		AndLogic: q.AndLogic,
		Labels:   q.Labels,
		Tags:     q.Tags,
	})
	if err != nil {
		return model.SearchResult{}, err
	}

	totalDocs, err := e.totalDocuments(ctx)
	if err != nil {
		return model.SearchResult{}, err
	}

	phraseBonus := q.PhraseSearchBonus
	if phraseBonus <= 0 {
		phraseBonus = 2.0
	}
	divisor := q.SigmoidNormalizationDivisor
	if divisor <= 0 {
		divisor = 10.0
	}

	hits := make([]model.SearchHit, 0, len(candidates))
	for _, c := range candidates {
		hit := e.score(c, orderedTerms, totalDocs, phraseBonus, divisor)
		if q.IncludeDocuments {
			doc := c.Document
			hit.Document = &doc
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].MatchedTermCount != hits[j].MatchedTermCount {
			return hits[i].MatchedTermCount > hits[j].MatchedTermCount
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	total := len(hits)
	max := q.MaxResults
	if max <= 0 {
		max = 100
	}
	if max > 10000 {
		max = 10000
	}
	if len(hits) > max {
		hits = hits[:max]
	}

	return model.SearchResult{
		Hits:       hits,
		TotalCount: total,
		SearchTime: time.Since(start),
	}, nil
}

// prepareQuery tokenizes and deduplicates the query text, returning the
// dedup set and the first-occurrence-ordered term list (needed for the
// phrase bonus's consecutive-position check).
func (e *Engine) prepareQuery(text string) (map[string]struct{}, []string) {
	tokens := e.pipe.Run(text)
	seen := make(map[string]struct{}, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t.Normalized]; ok {
			continue
		}
		seen[t.Normalized] = struct{}{}
		order = append(order, t.Normalized)
	}
	return seen, order
}

func (e *Engine) totalDocuments(ctx context.Context) (int, error) {
	stats, err := e.repo.Statistics(ctx)
	if err != nil {
		return 0, err
	}
	return stats.DocumentCount, nil
}

// score computes a single candidate's BM25-style score, including the
// phrase bonus.
func (e *Engine) score(c store.CandidateDocument, orderedQueryTerms []string, totalDocs int, phraseBonus, divisor float64) model.SearchHit {
	var raw float64
	matchedTerms := make([]string, 0, len(orderedQueryTerms))

	for _, term := range orderedQueryTerms {
		mt, ok := c.MatchedTerms[term]
		if !ok {
			continue
		}
		matchedTerms = append(matchedTerms, term)
		raw += termScore(mt, totalDocs)
	}

	if len(orderedQueryTerms) >= 2 && containsConsecutiveRun(c.MatchedTerms, orderedQueryTerms) {
		raw *= phraseBonus
	}

	score := raw / (raw + divisor)

	return model.SearchHit{
		DocumentID:       c.Document.ID,
		Score:            score,
		MatchedTermCount: len(matchedTerms),
		MatchedTerms:     matchedTerms,
	}
}

// termScore computes tf * idf for one matched term, with BM25-style
// smoothing on the idf.
func termScore(mt store.MatchedTerm, totalDocs int) float64 {
	n := float64(totalDocs)
	df := float64(mt.DocumentFrequency)
	idf := math.Log((n-df+0.5)/(df+0.5) + 1)
	return float64(mt.TermFrequency) * idf
}

// containsConsecutiveRun reports whether some pair of adjacent query terms
// (in query order) appear at consecutive word positions in the document, in
// that same order — the phrase bonus trigger condition.
func containsConsecutiveRun(matched map[string]store.MatchedTerm, orderedQueryTerms []string) bool {
	for i := 0; i+1 < len(orderedQueryTerms); i++ {
		first, ok1 := matched[orderedQueryTerms[i]]
		second, ok2 := matched[orderedQueryTerms[i+1]]
		if !ok1 || !ok2 {
			continue
		}
		if adjacentPositions(first.TermPositions, second.TermPositions) {
			return true
		}
	}
	return false
}

// adjacentPositions reports whether some position in b is exactly one
// greater than some position in a.
func adjacentPositions(a, b []int) bool {
	set := make(map[int]struct{}, len(a))
	for _, p := range a {
		set[p] = struct{}{}
	}
	for _, p := range b {
		if _, ok := set[p-1]; ok {
			return true
		}
	}
	return false
}
