package verbex

import "github.com/jchristn/verbex/internal/model"

// Public data types. These are aliases over internal/model so that the
// storage, repository, indexer, and retrieval packages can share one
// definition without importing this package (which would cycle).
type (
	Document             = model.Document
	Term                 = model.Term
	Posting              = model.Posting
	Label                = model.Label
	Tag                  = model.Tag
	IndexMetadata        = model.IndexMetadata
	Statistics           = model.Statistics
	TermStatistics       = model.TermStatistics
	DocumentWithMetadata = model.DocumentWithMetadata
	SearchHit            = model.SearchHit
	SearchResult         = model.SearchResult
)
