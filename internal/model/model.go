// Package model holds the data types shared by every storage backend and by
// the public verbex API. Keeping them here (instead of the root package)
// lets internal/store, internal/repo, internal/indexer and internal/retrieval
// depend on the model without importing the root package, which in turn
// re-exports these types by alias.
package model

import "time"

// Document is a single indexed unit of text.
type Document struct {
	ID              string
	Name            string
	ContentSHA256   string
	DocumentLength  int
	TermCount       int
	IndexedUTC      time.Time
	LastModifiedUTC time.Time
	CreatedUTC      time.Time
}

// Term is a normalized vocabulary entry.
type Term struct {
	ID                string
	Term              string
	DocumentFrequency int
	TotalFrequency    int
}

// Posting maps one document to one term it contains.
type Posting struct {
	DocumentID         string
	TermID             string
	TermFrequency      int
	CharacterPositions []int
	TermPositions      []int
}

// Label is a freeform string attached to a document, or to the index itself
// when DocumentID is empty.
type Label struct {
	ID         string
	DocumentID string // empty ⇒ index-level
	Label      string
}

// Tag is a key/value pair attached to a document, or to the index itself when
// DocumentID is empty. Value is a pointer so that an explicit NULL value is
// distinguishable from the empty string.
type Tag struct {
	ID         string
	DocumentID string // empty ⇒ index-level
	Key        string
	Value      *string
}

// IndexMetadata is the single metadata row describing the index as a whole.
type IndexMetadata struct {
	ID              string
	Name            string
	CreatedUTC      time.Time
	LastModifiedUTC time.Time
}

// Statistics summarizes the whole index.
type Statistics struct {
	DocumentCount    int
	TermCount        int
	PostingCount     int
	TotalDocSize     int64
	AverageDocLength float64
}

// TermStatistics summarizes a single term.
type TermStatistics struct {
	DocumentFrequency int
	TotalFrequency    int
}

// DocumentWithMetadata bundles a document with its labels, tags, and indexed
// terms, returned together by one call.
type DocumentWithMetadata struct {
	Document Document
	Labels   []Label
	Tags     []Tag
	Terms    []string
}

// SearchHit is one ranked result.
type SearchHit struct {
	DocumentID       string
	Score            float64
	MatchedTermCount int
	Document         *Document
	MatchedTerms     []string
}

// SearchResult is the top-level response to a search.
type SearchResult struct {
	Hits       []SearchHit
	TotalCount int
	SearchTime time.Duration
}
