// Package indexer implements document ingestion and removal: tokenize,
// compute per-term frequency/position data, and write documents, terms,
// and postings atomically through the repository facade.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jchristn/verbex/internal/ids"
	"github.com/jchristn/verbex/internal/model"
	"github.com/jchristn/verbex/internal/repo"
	"github.com/jchristn/verbex/internal/store"
	"github.com/jchristn/verbex/internal/tokenizer"
)

// Indexer ingests and removes documents against a repository facade.
type Indexer struct {
	repo *repo.Repository
	pipe *tokenizer.Pipeline
	gen  *ids.Generator

	// maxBatchWorkers bounds concurrent posting-batch preparation
	// (golang.org/x/sync/errgroup) so ingestion of wide documents doesn't
	// spawn unbounded goroutines.
	maxBatchWorkers int
}

// New builds an Indexer over repo, tokenizing with pipe and minting ids with
// gen. maxBatchWorkers bounds errgroup concurrency for postings assembly; a
// value <= 0 defaults to 4.
func New(r *repo.Repository, pipe *tokenizer.Pipeline, gen *ids.Generator, maxBatchWorkers int) *Indexer {
	if maxBatchWorkers <= 0 {
		maxBatchWorkers = 4
	}
	return &Indexer{repo: r, pipe: pipe, gen: gen, maxBatchWorkers: maxBatchWorkers}
}

// termAccumulator collects per-term frequency and position data for one
// document during tokenization.
type termAccumulator struct {
	frequency          int
	characterPositions []int
	termPositions      []int
}

// accumulate runs the tokenizer over content and folds the result into a
// term -> accumulator map, preserving first-occurrence order via termOrder.
func (ix *Indexer) accumulate(content string) (map[string]*termAccumulator, []string) {
	tokens := ix.pipe.Run(content)
	acc := make(map[string]*termAccumulator)
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		a, ok := acc[tok.Normalized]
		if !ok {
			a = &termAccumulator{}
			acc[tok.Normalized] = a
			order = append(order, tok.Normalized)
		}
		a.frequency++
		a.characterPositions = append(a.characterPositions, tok.CharStart)
		a.termPositions = append(a.termPositions, tok.WordIndex)
	}
	return acc, order
}

// AddDocument ingests content under name, generating a new id if id is empty.
// Re-ingesting an id that already exists performs remove-then-add under the
// same transaction.
func (ix *Indexer) AddDocument(ctx context.Context, id, name, content string) (model.Document, error) {
	if id == "" {
		id = ix.gen.New()
	}

	sum := sha256.Sum256([]byte(content))
	doc := model.Document{
		ID:             id,
		Name:           name,
		ContentSHA256:  hex.EncodeToString(sum[:]),
		DocumentLength: len([]rune(content)),
	}

	acc, order := ix.accumulate(content)
	doc.TermCount = len(order)

	err := ix.repo.WithWriteLock(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		existing, err := ix.repo.DocumentExists(ctx, id)
		if err != nil {
			return err
		}
		if existing {
			if err := ix.removeLocked(ctx, id); err != nil {
				return fmt.Errorf("indexer: re-ingest remove: %w", err)
			}
		}

		now := time.Now().UTC()
		doc.IndexedUTC = now
		doc.LastModifiedUTC = now
		doc.CreatedUTC = now
		if err := ix.repo.InsertDocumentRow(ctx, doc); err != nil {
			return fmt.Errorf("indexer: insert document: %w", err)
		}

		termIDs, err := ix.repo.AddOrGetTermsBatch(ctx, order)
		if err != nil {
			return fmt.Errorf("indexer: add terms: %w", err)
		}

		postings, deltas := ix.buildPostingsAndDeltas(id, order, acc, termIDs)

		if err := ix.repo.InsertPostingsBatch(ctx, postings); err != nil {
			return fmt.Errorf("indexer: insert postings: %w", err)
		}
		if err := ix.repo.IncrementTermFrequenciesBatch(ctx, deltas); err != nil {
			return fmt.Errorf("indexer: increment term frequencies: %w", err)
		}
		return ix.repo.TouchMetadata(ctx)
	})
	if err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

// buildPostingsAndDeltas assembles the postings slice and term frequency
// deltas for one document. For documents with enough distinct terms to be
// worth parallelizing, the per-term marshaling work is split across an
// errgroup-bounded worker pool; the resulting slices are still assembled
// deterministically by term order.
func (ix *Indexer) buildPostingsAndDeltas(docID string, order []string, acc map[string]*termAccumulator, termIDs map[string]string) ([]model.Posting, map[string]store.TermDelta) {
	postings := make([]model.Posting, len(order))
	deltas := make(map[string]store.TermDelta, len(order))

	if len(order) < 64 {
		for i, term := range order {
			postings[i] = ix.postingFor(docID, term, acc[term], termIDs[term])
			deltas[termIDs[term]] = store.TermDelta{DocFreqDelta: 1, TotalFreqDelta: acc[term].frequency}
		}
		return postings, deltas
	}

	var g errgroup.Group
	g.SetLimit(ix.maxBatchWorkers)
	for i, term := range order {
		i, term := i, term
		g.Go(func() error {
			postings[i] = ix.postingFor(docID, term, acc[term], termIDs[term])
			return nil
		})
	}
	_ = g.Wait() // postingFor cannot fail; error path reserved for future validation hooks.

	for _, term := range order {
		deltas[termIDs[term]] = store.TermDelta{DocFreqDelta: 1, TotalFreqDelta: acc[term].frequency}
	}
	return postings, deltas
}

func (ix *Indexer) postingFor(docID, term string, a *termAccumulator, termID string) model.Posting {
	return model.Posting{
		DocumentID:         docID,
		TermID:             termID,
		TermFrequency:      a.frequency,
		CharacterPositions: a.characterPositions,
		TermPositions:      a.termPositions,
	}
}

// RemoveDocument deletes a document and symmetrically decrements term
// frequencies. Returns false if the document does not exist.
func (ix *Indexer) RemoveDocument(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := ix.repo.WithWriteLock(ctx, func(ctx context.Context) error {
		exists, err := ix.repo.DocumentExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := ix.removeLocked(ctx, id); err != nil {
			return err
		}
		removed = true
		return ix.repo.TouchMetadata(ctx)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// removeLocked performs the decrement-then-cascade-delete sequence. Callers
// must already be inside a WithWriteLock scope and must have verified the
// document exists.
func (ix *Indexer) removeLocked(ctx context.Context, id string) error {
	postings, err := ix.repo.GetDocumentPostings(ctx, id)
	if err != nil {
		return fmt.Errorf("indexer: load postings: %w", err)
	}

	if len(postings) > 0 {
		deltas := make(map[string]store.TermDelta, len(postings))
		for _, p := range postings {
			deltas[p.TermID] = store.TermDelta{DocFreqDelta: 1, TotalFreqDelta: p.TermFrequency}
		}
		if err := ix.repo.DecrementTermFrequenciesBatch(ctx, deltas); err != nil {
			return fmt.Errorf("indexer: decrement term frequencies: %w", err)
		}
	}

	if err := ix.repo.DeleteDocumentCascade(ctx, id); err != nil {
		return fmt.Errorf("indexer: delete document: %w", err)
	}
	return nil
}
