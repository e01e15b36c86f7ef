package verbex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/jchristn/verbex/internal/ids"
	"github.com/jchristn/verbex/internal/indexer"
	"github.com/jchristn/verbex/internal/repo"
	"github.com/jchristn/verbex/internal/retrieval"
	"github.com/jchristn/verbex/internal/store"
	"github.com/jchristn/verbex/internal/store/memory"
	"github.com/jchristn/verbex/internal/store/sqlite"
	"github.com/jchristn/verbex/internal/tokenizer"
)

// indexState tracks the New -> Open -> Closed state machine.
type indexState int32

const (
	stateNew indexState = iota
	stateOpen
	stateClosed
)

// Index is a single full-text search index: tokenizer pipeline, storage
// backend, and the repository/indexer/retrieval layers wired over it.
//
// Mutating operations are serialized through a capacity-1 semaphore;
// reads proceed concurrently. An Index moves New -> Open -> Closed and
// never backward; any operation on a Closed index returns ErrDisposed.
type Index struct {
	cfg Config

	backend store.Backend
	repo    *repo.Repository
	ix      *indexer.Indexer
	engine  *retrieval.Engine
	gen     *ids.Generator

	state    atomic.Int32
	writeSem chan struct{}

	path string // on-disk database path; empty for in-memory indices
}

// NewIndex validates cfg and constructs an Index in the New state. Call
// Open before using it.
func NewIndex(cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gen := ids.NewGenerator()
	pipe := buildPipeline(cfg)

	var backend store.Backend
	var path string
	switch cfg.StorageMode {
	case StorageInMemory:
		backend = memory.New(cfg.Name)
	case StorageOnDisk:
		dir := cfg.StorageDirectory
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("verbex: resolve home directory: %w", errors.Join(ErrIO, err))
			}
			dir = filepath.Join(home, ".vbx", "indices", cfg.Name)
		}
		path = filepath.Join(dir, cfg.DatabaseFilename)
		backend = sqlite.New(cfg.Name, path, cfg.MaxConcurrentOps)
	default:
		return nil, fmt.Errorf("verbex: config: %w: unrecognized storage_mode", ErrInvalidArgument)
	}

	r := repo.New(backend)
	idx := &Index{
		cfg:      cfg,
		backend:  backend,
		repo:     r,
		ix:       indexer.New(r, pipe, gen, cfg.MaxConcurrentOps),
		engine:   retrieval.New(r, pipe),
		gen:      gen,
		writeSem: make(chan struct{}, 1),
		path:     path,
	}
	return idx, nil
}

// buildPipeline adapts the public Config hooks (which may be nil) into an
// internal/tokenizer.Pipeline. Lemmatizer and StopWordRemover satisfy the
// internal interfaces structurally; Tokenizer needs a small adapter since
// its RawToken is a separate public struct, not tokenizer.RawToken.
func buildPipeline(cfg Config) *tokenizer.Pipeline {
	var split tokenizer.Splitter
	if cfg.Tokenizer != nil {
		split = splitterAdapter{cfg.Tokenizer}
	}
	return tokenizer.New(split, cfg.MinTokenLength, cfg.MaxTokenLength, cfg.StopWordRemover, cfg.Lemmatizer)
}

type splitterAdapter struct{ t Tokenizer }

func (a splitterAdapter) Split(text string) []tokenizer.RawToken {
	raw := a.t.Tokenize(text)
	out := make([]tokenizer.RawToken, len(raw))
	for i, r := range raw {
		out[i] = tokenizer.RawToken{Text: r.Text, CharStart: r.CharStart, CharEnd: r.CharEnd, WordIndex: r.WordIndex}
	}
	return out
}

func (ix *Index) guardOpen() error {
	switch indexState(ix.state.Load()) {
	case stateClosed:
		return ErrDisposed
	case stateNew:
		return ErrNotOpen
	default:
		return nil
	}
}

// acquireWrite blocks until the write semaphore is free or ctx is done.
func (ix *Index) acquireWrite(ctx context.Context) error {
	select {
	case ix.writeSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("verbex: %w", ErrCancelled)
	}
}

func (ix *Index) releaseWrite() { <-ix.writeSem }

// Open transitions New -> Open, opening the underlying storage backend.
func (ix *Index) Open(ctx context.Context) error {
	if indexState(ix.state.Load()) == stateClosed {
		return ErrDisposed
	}
	if !ix.state.CompareAndSwap(int32(stateNew), int32(stateOpen)) {
		return nil // already open
	}
	if err := ix.repo.Open(ctx); err != nil {
		ix.state.Store(int32(stateNew))
		return translateErr(err)
	}
	ix.cfg.Logger.Debug("index opened", "name", ix.cfg.Name, "storage_mode", ix.cfg.StorageMode)
	return nil
}

// Close disposes the index. Idempotent; safe to call more than once.
func (ix *Index) Close(ctx context.Context) error {
	if !ix.state.CompareAndSwap(int32(stateOpen), int32(stateClosed)) {
		ix.state.Store(int32(stateClosed))
		return nil
	}
	if ix.backend.Durable() {
		_ = ix.repo.Flush(ctx)
	}
	return translateErr(ix.repo.Close(ctx))
}

// Flush commits pending writes on the persistent backend and is a no-op on
// the in-memory backend. The index stays Open.
func (ix *Index) Flush(ctx context.Context) error {
	if err := ix.guardOpen(); err != nil {
		return err
	}
	return translateErr(ix.repo.Flush(ctx))
}

// Ping verifies the index is open and its backend is reachable.
func (ix *Index) Ping(ctx context.Context) error {
	if err := ix.guardOpen(); err != nil {
		return err
	}
	_, err := ix.repo.GetMetadata(ctx)
	return translateErr(err)
}

// Durable reports whether this index's backend persists across restarts.
func (ix *Index) Durable() bool { return ix.backend.Durable() }

// Path returns the on-disk database path, or "" for an in-memory index.
func (ix *Index) Path() string { return ix.path }

// --- Documents --------------------------------------------------------------

// AddDocument ingests content under name, minting a new document id.
func (ix *Index) AddDocument(ctx context.Context, name, content string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("verbex: add document: %w: name must not be empty", ErrInvalidArgument)
	}
	if err := ix.guardOpen(); err != nil {
		return "", err
	}
	if err := ix.acquireWrite(ctx); err != nil {
		return "", err
	}
	defer ix.releaseWrite()

	doc, err := ix.ix.AddDocument(ctx, "", name, content)
	if err != nil {
		return "", translateErr(err)
	}
	return doc.ID, nil
}

// AddDocumentWithID ingests content under an explicit id, failing with
// ErrDuplicate if that id is already in use (re-ingestion is not exposed
// through this entry point).
func (ix *Index) AddDocumentWithID(ctx context.Context, id, name, content string) error {
	if id == "" {
		return fmt.Errorf("verbex: add document: %w: id must not be empty", ErrInvalidArgument)
	}
	if name == "" {
		return fmt.Errorf("verbex: add document: %w: name must not be empty", ErrInvalidArgument)
	}
	if err := ix.guardOpen(); err != nil {
		return err
	}
	if err := ix.acquireWrite(ctx); err != nil {
		return err
	}
	defer ix.releaseWrite()

	exists, err := ix.repo.DocumentExists(ctx, id)
	if err != nil {
		return translateErr(err)
	}
	if exists {
		return fmt.Errorf("verbex: add document: %w", ErrDuplicate)
	}
	_, err = ix.ix.AddDocument(ctx, id, name, content)
	return translateErr(err)
}

// RemoveDocument deletes a document by id, returning false if it did not exist.
func (ix *Index) RemoveDocument(ctx context.Context, id string) (bool, error) {
	if err := ix.guardOpen(); err != nil {
		return false, err
	}
	if err := ix.acquireWrite(ctx); err != nil {
		return false, err
	}
	defer ix.releaseWrite()

	removed, err := ix.ix.RemoveDocument(ctx, id)
	return removed, translateErr(err)
}

// GetDocument returns a document's metadata, or nil if it does not exist.
func (ix *Index) GetDocument(ctx context.Context, id string) (*Document, error) {
	if err := ix.guardOpen(); err != nil {
		return nil, err
	}
	doc, err := ix.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, translateErr(err)
	}
	return &doc, nil
}

// GetDocumentByName returns a document's metadata by name, or nil if missing.
func (ix *Index) GetDocumentByName(ctx context.Context, name string) (*Document, error) {
	if err := ix.guardOpen(); err != nil {
		return nil, err
	}
	doc, err := ix.repo.GetDocumentByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, translateErr(err)
	}
	return &doc, nil
}

// GetDocumentWithMetadata fetches a document plus its labels, tags, and
// indexed terms in one call, or nil if it does not exist. The four parts
// are read separately, not inside one transaction.
func (ix *Index) GetDocumentWithMetadata(ctx context.Context, id string) (*DocumentWithMetadata, error) {
	if err := ix.guardOpen(); err != nil {
		return nil, err
	}
	doc, err := ix.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, translateErr(err)
	}
	labels, err := ix.repo.ListLabels(ctx, id)
	if err != nil {
		return nil, translateErr(err)
	}
	tags, err := ix.repo.ListTags(ctx, id)
	if err != nil {
		return nil, translateErr(err)
	}
	terms, err := ix.repo.DocumentTerms(ctx, id)
	if err != nil {
		return nil, translateErr(err)
	}
	return &DocumentWithMetadata{Document: doc, Labels: labels, Tags: tags, Terms: terms}, nil
}

// ListDocuments lists documents in id order. limit is clamped to [1, 10000].
func (ix *Index) ListDocuments(ctx context.Context, limit, offset int) ([]Document, error) {
	if err := ix.guardOpen(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, 1)
	if offset < 0 {
		offset = 0
	}
	docs, err := ix.repo.ListDocuments(ctx, store.ListOptions{Limit: limit, Offset: offset})
	return docs, translateErr(err)
}

// DocumentExists reports whether a document id is present.
func (ix *Index) DocumentExists(ctx context.Context, id string) (bool, error) {
	if err := ix.guardOpen(); err != nil {
		return false, err
	}
	ok, err := ix.repo.DocumentExists(ctx, id)
	return ok, translateErr(err)
}

// DocumentExistsByName reports whether a document name is present.
func (ix *Index) DocumentExistsByName(ctx context.Context, name string) (bool, error) {
	if err := ix.guardOpen(); err != nil {
		return false, err
	}
	ok, err := ix.repo.DocumentExistsByName(ctx, name)
	return ok, translateErr(err)
}

// --- Search -----------------------------------------------------------------

// SearchOptions narrows a Search call. The zero value searches in OR mode
// with no label/tag filter and the configured default result count.
type SearchOptions struct {
	MaxResults       int
	AndLogic         bool
	Labels           []string
	Tags             map[string]string
	IncludeDocuments bool
}

// Search runs query through the tokenizer pipeline and returns ranked hits.
func (ix *Index) Search(ctx context.Context, query string, opts SearchOptions) (SearchResult, error) {
	if err := ix.guardOpen(); err != nil {
		return SearchResult{}, err
	}
	max := opts.MaxResults
	if max <= 0 {
		max = ix.cfg.DefaultMaxSearchResults
	}
	result, err := ix.engine.Search(ctx, retrieval.Query{
		Text:                        query,
		MaxResults:                  max,
		AndLogic:                    opts.AndLogic,
		Labels:                      opts.Labels,
		Tags:                        opts.Tags,
		PhraseSearchBonus:           ix.cfg.PhraseSearchBonus,
		SigmoidNormalizationDivisor: ix.cfg.SigmoidNormalizationDivisor,
		IncludeDocuments:            opts.IncludeDocuments,
	})
	return result, translateErr(err)
}

// --- Statistics ---------------------------------------------------------

// GetStatistics summarizes the whole index.
func (ix *Index) GetStatistics(ctx context.Context) (Statistics, error) {
	if err := ix.guardOpen(); err != nil {
		return Statistics{}, err
	}
	stats, err := ix.repo.Statistics(ctx)
	return stats, translateErr(err)
}

// GetTermStatistics returns a single term's frequency data, or nil if the
// term is absent from the index.
func (ix *Index) GetTermStatistics(ctx context.Context, term string) (*TermStatistics, error) {
	if err := ix.guardOpen(); err != nil {
		return nil, err
	}
	stats, found, err := ix.repo.TermStats(ctx, term)
	if err != nil {
		return nil, translateErr(err)
	}
	if !found {
		return nil, nil
	}
	return &stats, nil
}

// --- Labels (document-scoped) ------------------------------------------

// AddLabel attaches label to documentID. documentID must not be empty; use
// AddIndexLabel for index-scoped labels.
func (ix *Index) AddLabel(ctx context.Context, documentID, label string) error {
	return ix.mutateLabel(ctx, documentID, func(ctx context.Context) error {
		return ix.repo.AddLabel(ctx, documentID, label)
	})
}

// RemoveLabel detaches label from documentID.
func (ix *Index) RemoveLabel(ctx context.Context, documentID, label string) error {
	return ix.mutateLabel(ctx, documentID, func(ctx context.Context) error {
		return ix.repo.RemoveLabel(ctx, documentID, label)
	})
}

// GetLabels lists documentID's labels.
func (ix *Index) GetLabels(ctx context.Context, documentID string) ([]Label, error) {
	if err := ix.requireDocumentScope(documentID); err != nil {
		return nil, err
	}
	if err := ix.guardOpen(); err != nil {
		return nil, err
	}
	labels, err := ix.repo.ListLabels(ctx, documentID)
	return labels, translateErr(err)
}

// ReplaceLabels overwrites documentID's label set.
func (ix *Index) ReplaceLabels(ctx context.Context, documentID string, labels []string) error {
	return ix.mutateLabel(ctx, documentID, func(ctx context.Context) error {
		return ix.repo.ReplaceLabels(ctx, documentID, labels)
	})
}

// AddLabelsBatch attaches multiple labels to documentID in one call.
func (ix *Index) AddLabelsBatch(ctx context.Context, documentID string, labels []string) error {
	return ix.mutateLabel(ctx, documentID, func(ctx context.Context) error {
		return ix.repo.AddLabelsBatch(ctx, documentID, labels)
	})
}

// --- Labels (index-scoped) -----------------------------------------------

// AddIndexLabel attaches an index-scoped label (document_id = null).
func (ix *Index) AddIndexLabel(ctx context.Context, label string) error {
	return ix.mutate(ctx, func(ctx context.Context) error {
		return ix.repo.AddLabel(ctx, "", label)
	})
}

// RemoveIndexLabel detaches an index-scoped label.
func (ix *Index) RemoveIndexLabel(ctx context.Context, label string) error {
	return ix.mutate(ctx, func(ctx context.Context) error {
		return ix.repo.RemoveLabel(ctx, "", label)
	})
}

// GetIndexLabels lists index-scoped labels.
func (ix *Index) GetIndexLabels(ctx context.Context) ([]Label, error) {
	if err := ix.guardOpen(); err != nil {
		return nil, err
	}
	labels, err := ix.repo.ListLabels(ctx, "")
	return labels, translateErr(err)
}

// --- Tags (document-scoped) ----------------------------------------------

// SetTag upserts a (key, value) tag on documentID. A nil value stores NULL.
func (ix *Index) SetTag(ctx context.Context, documentID, key string, value *string) error {
	return ix.mutateLabel(ctx, documentID, func(ctx context.Context) error {
		return ix.repo.SetTag(ctx, documentID, key, value)
	})
}

// RemoveTag deletes a tag by key from documentID.
func (ix *Index) RemoveTag(ctx context.Context, documentID, key string) error {
	return ix.mutateLabel(ctx, documentID, func(ctx context.Context) error {
		return ix.repo.RemoveTag(ctx, documentID, key)
	})
}

// GetTags lists documentID's tags.
func (ix *Index) GetTags(ctx context.Context, documentID string) ([]Tag, error) {
	if err := ix.requireDocumentScope(documentID); err != nil {
		return nil, err
	}
	if err := ix.guardOpen(); err != nil {
		return nil, err
	}
	tags, err := ix.repo.ListTags(ctx, documentID)
	return tags, translateErr(err)
}

// ReplaceTags overwrites documentID's tag set.
func (ix *Index) ReplaceTags(ctx context.Context, documentID string, tags map[string]*string) error {
	return ix.mutateLabel(ctx, documentID, func(ctx context.Context) error {
		return ix.repo.ReplaceTags(ctx, documentID, tags)
	})
}

// AddTagsBatch upserts multiple tags on documentID in one call.
func (ix *Index) AddTagsBatch(ctx context.Context, documentID string, tags map[string]*string) error {
	return ix.mutateLabel(ctx, documentID, func(ctx context.Context) error {
		return ix.repo.AddTagsBatch(ctx, documentID, tags)
	})
}

// --- Tags (index-scoped) -------------------------------------------------

// SetIndexTag upserts an index-scoped tag.
func (ix *Index) SetIndexTag(ctx context.Context, key string, value *string) error {
	return ix.mutate(ctx, func(ctx context.Context) error {
		return ix.repo.SetTag(ctx, "", key, value)
	})
}

// RemoveIndexTag deletes an index-scoped tag.
func (ix *Index) RemoveIndexTag(ctx context.Context, key string) error {
	return ix.mutate(ctx, func(ctx context.Context) error {
		return ix.repo.RemoveTag(ctx, "", key)
	})
}

// GetIndexTags lists index-scoped tags.
func (ix *Index) GetIndexTags(ctx context.Context) ([]Tag, error) {
	if err := ix.guardOpen(); err != nil {
		return nil, err
	}
	tags, err := ix.repo.ListTags(ctx, "")
	return tags, translateErr(err)
}

// --- internals --------------------------------------------------------------

func (ix *Index) requireDocumentScope(documentID string) error {
	if documentID == "" {
		return fmt.Errorf("verbex: %w: document id must not be empty; use the index-scoped variant", ErrInvalidArgument)
	}
	return nil
}

func (ix *Index) mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ix.guardOpen(); err != nil {
		return err
	}
	if err := ix.acquireWrite(ctx); err != nil {
		return err
	}
	defer ix.releaseWrite()
	return translateErr(ix.repo.WithWriteLock(ctx, fn))
}

func (ix *Index) mutateLabel(ctx context.Context, documentID string, fn func(ctx context.Context) error) error {
	if err := ix.requireDocumentScope(documentID); err != nil {
		return err
	}
	return ix.mutate(ctx, fn)
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 10000 {
		limit = 10000
	}
	return limit
}

// translateErr maps internal sentinel errors onto the public error kinds,
// leaving already-public errors and nil untouched.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repo.ErrDisposed):
		return ErrDisposed
	case errors.Is(err, repo.ErrNotOpen):
		return ErrNotOpen
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("verbex: %w", ErrNotFound)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("verbex: %w", ErrDuplicate)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("verbex: %w", ErrCancelled)
	default:
		return err
	}
}
