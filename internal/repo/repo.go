// Package repo implements the repository facade: a uniform entity-grouped
// contract over whichever storage.Backend an Index is
// configured with, enforcing disposed/not-open guards ahead of every call so
// individual backends don't have to.
package repo

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jchristn/verbex/internal/model"
	"github.com/jchristn/verbex/internal/store"
)

// Guard errors, translated by the root package into verbex.ErrDisposed /
// verbex.ErrNotOpen.
var (
	ErrDisposed = errors.New("repo: disposed")
	ErrNotOpen  = errors.New("repo: not open")
)

// Repository wraps a store.Backend with lifecycle guards and batch-oriented
// entity operations.
type Repository struct {
	backend store.Backend

	opened   atomic.Bool
	disposed atomic.Bool
}

// New wraps backend in a Repository. The backend is not opened yet.
func New(backend store.Backend) *Repository {
	return &Repository{backend: backend}
}

// Backend exposes the wrapped backend, for components (retrieval, indexer)
// that need lower-level access than the entity-grouped methods below.
func (r *Repository) Backend() store.Backend { return r.backend }

// Open opens the backend and flips the repository into the Open state.
func (r *Repository) Open(ctx context.Context) error {
	if r.disposed.Load() {
		return ErrDisposed
	}
	if err := r.backend.Open(ctx); err != nil {
		return err
	}
	r.opened.Store(true)
	return nil
}

// Close disposes the backend. Idempotent.
func (r *Repository) Close(ctx context.Context) error {
	if r.disposed.Swap(true) {
		return nil
	}
	r.opened.Store(false)
	return r.backend.Close(ctx)
}

// Flush commits pending writes (persistent) or no-ops (in-memory).
func (r *Repository) Flush(ctx context.Context) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.Flush(ctx)
}

// Durable reports whether the wrapped backend persists across process exit.
func (r *Repository) Durable() bool { return r.backend.Durable() }

func (r *Repository) guard() error {
	if r.disposed.Load() {
		return ErrDisposed
	}
	if !r.opened.Load() {
		return ErrNotOpen
	}
	return nil
}

// WithWriteLock runs fn atomically against the backend, after guard checks.
func (r *Repository) WithWriteLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.WithWriteLock(ctx, fn)
}

// --- Metadata -------------------------------------------------------------

func (r *Repository) GetMetadata(ctx context.Context) (model.IndexMetadata, error) {
	if err := r.guard(); err != nil {
		return model.IndexMetadata{}, err
	}
	return r.backend.GetMetadata(ctx)
}

func (r *Repository) TouchMetadata(ctx context.Context) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.TouchMetadata(ctx)
}

// --- Terms ------------------------------------------------------------------

func (r *Repository) AddOrGetTermsBatch(ctx context.Context, terms []string) (map[string]string, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return r.backend.AddOrGetTermsBatch(ctx, terms)
}

func (r *Repository) IncrementTermFrequenciesBatch(ctx context.Context, deltas map[string]store.TermDelta) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.IncrementTermFrequenciesBatch(ctx, deltas)
}

func (r *Repository) DecrementTermFrequenciesBatch(ctx context.Context, deltas map[string]store.TermDelta) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.DecrementTermFrequenciesBatch(ctx, deltas)
}

func (r *Repository) TermStats(ctx context.Context, term string) (model.TermStatistics, bool, error) {
	if err := r.guard(); err != nil {
		return model.TermStatistics{}, false, err
	}
	return r.backend.TermStats(ctx, term)
}

// --- Postings -----------------------------------------------------------

func (r *Repository) InsertPostingsBatch(ctx context.Context, postings []model.Posting) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.InsertPostingsBatch(ctx, postings)
}

func (r *Repository) GetDocumentPostings(ctx context.Context, documentID string) ([]model.Posting, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return r.backend.GetDocumentPostings(ctx, documentID)
}

// --- Documents ------------------------------------------------------------

func (r *Repository) InsertDocumentRow(ctx context.Context, doc model.Document) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.InsertDocumentRow(ctx, doc)
}

func (r *Repository) DeleteDocumentCascade(ctx context.Context, id string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.DeleteDocumentCascade(ctx, id)
}

func (r *Repository) GetDocument(ctx context.Context, id string) (model.Document, error) {
	if err := r.guard(); err != nil {
		return model.Document{}, err
	}
	return r.backend.GetDocument(ctx, id)
}

func (r *Repository) GetDocumentByName(ctx context.Context, name string) (model.Document, error) {
	if err := r.guard(); err != nil {
		return model.Document{}, err
	}
	return r.backend.GetDocumentByName(ctx, name)
}

func (r *Repository) DocumentExists(ctx context.Context, id string) (bool, error) {
	if err := r.guard(); err != nil {
		return false, err
	}
	return r.backend.DocumentExists(ctx, id)
}

func (r *Repository) DocumentExistsByName(ctx context.Context, name string) (bool, error) {
	if err := r.guard(); err != nil {
		return false, err
	}
	return r.backend.DocumentExistsByName(ctx, name)
}

func (r *Repository) ListDocuments(ctx context.Context, opts store.ListOptions) ([]model.Document, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return r.backend.ListDocuments(ctx, opts)
}

func (r *Repository) DocumentTerms(ctx context.Context, id string) ([]string, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return r.backend.DocumentTerms(ctx, id)
}

// --- Retrieval --------------------------------------------------------------

func (r *Repository) SearchCandidates(ctx context.Context, filter store.SearchFilter) ([]store.CandidateDocument, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return r.backend.SearchCandidates(ctx, filter)
}

func (r *Repository) ResolveTermIDs(ctx context.Context, terms []string) (map[string]string, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return r.backend.ResolveTermIDs(ctx, terms)
}

// --- Labels -------------------------------------------------------------

func (r *Repository) AddLabel(ctx context.Context, documentID, label string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.AddLabel(ctx, documentID, label)
}

func (r *Repository) RemoveLabel(ctx context.Context, documentID, label string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.RemoveLabel(ctx, documentID, label)
}

func (r *Repository) ListLabels(ctx context.Context, documentID string) ([]model.Label, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return r.backend.ListLabels(ctx, documentID)
}

func (r *Repository) ReplaceLabels(ctx context.Context, documentID string, labels []string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.ReplaceLabels(ctx, documentID, labels)
}

func (r *Repository) AddLabelsBatch(ctx context.Context, documentID string, labels []string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.AddLabelsBatch(ctx, documentID, labels)
}

// --- Tags -----------------------------------------------------------------

func (r *Repository) SetTag(ctx context.Context, documentID, key string, value *string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.SetTag(ctx, documentID, key, value)
}

func (r *Repository) RemoveTag(ctx context.Context, documentID, key string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.RemoveTag(ctx, documentID, key)
}

func (r *Repository) ListTags(ctx context.Context, documentID string) ([]model.Tag, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return r.backend.ListTags(ctx, documentID)
}

func (r *Repository) ReplaceTags(ctx context.Context, documentID string, tags map[string]*string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.ReplaceTags(ctx, documentID, tags)
}

func (r *Repository) AddTagsBatch(ctx context.Context, documentID string, tags map[string]*string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.backend.AddTagsBatch(ctx, documentID, tags)
}

// --- Statistics -------------------------------------------------------------

func (r *Repository) Statistics(ctx context.Context) (model.Statistics, error) {
	if err := r.guard(); err != nil {
		return model.Statistics{}, err
	}
	return r.backend.Statistics(ctx)
}
