// Package store defines the storage backend contract that both the
// in-memory backend (internal/store/memory) and the persistent relational
// backend (internal/store/sqlite) implement identically, modulo durability
// and Flush behavior.
package store

import (
	"context"
	"errors"

	"github.com/jchristn/verbex/internal/model"
)

// ErrNotFound is returned by lookups that find nothing; callers translate
// it to the public verbex.ErrNotFound, or to a nil/false zero value where
// the operation is a pure lookup.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when inserting a document whose id or name
// already exists.
var ErrDuplicate = errors.New("store: duplicate id")

// ListOptions bounds a paginated listing. Limit is already clamped by the
// caller (index façade) to [1, 10000].
type ListOptions struct {
	Limit  int
	Offset int
}

// SearchFilter narrows candidate selection during retrieval.
type SearchFilter struct {
	TermIDs  []string          // candidate terms, resolved by the caller
	AndLogic bool              // true: every term id must be present; false: any one
	Labels   []string          // AND over labels, case-insensitive
	Tags     map[string]string // AND over exact (key, value)
}

// TermDelta is a (document frequency, total frequency) adjustment for one
// term, keyed by term id in IncrementTermFrequenciesBatch /
// DecrementTermFrequenciesBatch. Magnitudes are always positive; the
// decrement batch subtracts them.
type TermDelta struct {
	DocFreqDelta   int
	TotalFreqDelta int
}

// CandidateDocument is a document that matched a search's boolean/label/tag
// filter, plus enough per-term detail for the scorer to work with.
type CandidateDocument struct {
	Document     model.Document
	MatchedTerms map[string]MatchedTerm // term text -> detail
}

// MatchedTerm carries what the scorer needs for one (document, term) pair.
type MatchedTerm struct {
	TermFrequency     int
	DocumentFrequency int
	TermPositions     []int
}

// Backend is the storage contract. WithWriteLock is the sole atomicity
// boundary: every mutating method is only guaranteed atomic with its peers
// when called from inside a WithWriteLock callback. The sqlite backend
// realizes this with a *sql.Tx stashed on the context; the in-memory backend
// realizes it with its single reader-writer lock.
type Backend interface {
	// Lifecycle.
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Flush(ctx context.Context) error
	Durable() bool

	// WithWriteLock runs fn with exclusive write access. On any error
	// returned by fn, all writes performed by fn are rolled back.
	WithWriteLock(ctx context.Context, fn func(ctx context.Context) error) error

	// Metadata.
	GetMetadata(ctx context.Context) (model.IndexMetadata, error)
	TouchMetadata(ctx context.Context) error

	// Terms. Batch methods are the only write path.
	AddOrGetTermsBatch(ctx context.Context, terms []string) (map[string]string, error)
	IncrementTermFrequenciesBatch(ctx context.Context, deltas map[string]TermDelta) error
	DecrementTermFrequenciesBatch(ctx context.Context, deltas map[string]TermDelta) error
	TermStats(ctx context.Context, term string) (model.TermStatistics, bool, error)

	// Postings. Batch insert is the only write path.
	InsertPostingsBatch(ctx context.Context, postings []model.Posting) error
	GetDocumentPostings(ctx context.Context, documentID string) ([]model.Posting, error)

	// Documents.
	InsertDocumentRow(ctx context.Context, doc model.Document) error
	DeleteDocumentCascade(ctx context.Context, id string) error
	GetDocument(ctx context.Context, id string) (model.Document, error)
	GetDocumentByName(ctx context.Context, name string) (model.Document, error)
	DocumentExists(ctx context.Context, id string) (bool, error)
	DocumentExistsByName(ctx context.Context, name string) (bool, error)
	ListDocuments(ctx context.Context, opts ListOptions) ([]model.Document, error)
	DocumentTerms(ctx context.Context, id string) ([]string, error)

	// Retrieval.
	SearchCandidates(ctx context.Context, filter SearchFilter) ([]CandidateDocument, error)
	ResolveTermIDs(ctx context.Context, terms []string) (map[string]string, error)

	// Labels — document_id == "" means index-level.
	AddLabel(ctx context.Context, documentID, label string) error
	RemoveLabel(ctx context.Context, documentID, label string) error
	ListLabels(ctx context.Context, documentID string) ([]model.Label, error)
	ReplaceLabels(ctx context.Context, documentID string, labels []string) error
	AddLabelsBatch(ctx context.Context, documentID string, labels []string) error

	// Tags — document_id == "" means index-level.
	SetTag(ctx context.Context, documentID, key string, value *string) error
	RemoveTag(ctx context.Context, documentID, key string) error
	ListTags(ctx context.Context, documentID string) ([]model.Tag, error)
	ReplaceTags(ctx context.Context, documentID string, tags map[string]*string) error
	AddTagsBatch(ctx context.Context, documentID string, tags map[string]*string) error

	// Statistics.
	Statistics(ctx context.Context) (model.Statistics, error)
}
