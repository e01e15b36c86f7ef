package sqlite

import "strings"

// schemaDDL creates every table and index. Foreign keys cascade document
// deletion down to postings, labels, and tags;
// labels/tags at the index level (document_id NULL) are untouched by any
// document's ON DELETE CASCADE.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS index_metadata (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	created_utc       TEXT NOT NULL,
	last_modified_utc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL UNIQUE,
	content_sha256    TEXT NOT NULL DEFAULT '',
	document_length   INTEGER NOT NULL DEFAULT 0,
	term_count        INTEGER NOT NULL DEFAULT 0,
	indexed_utc       TEXT NOT NULL,
	last_modified_utc TEXT NOT NULL,
	created_utc       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_name ON documents(name);
CREATE INDEX IF NOT EXISTS idx_documents_sha256 ON documents(content_sha256);
CREATE INDEX IF NOT EXISTS idx_documents_indexed_utc ON documents(indexed_utc);

CREATE TABLE IF NOT EXISTS terms (
	id                 TEXT PRIMARY KEY,
	term               TEXT NOT NULL UNIQUE,
	document_frequency INTEGER NOT NULL DEFAULT 0,
	total_frequency    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_terms_document_frequency ON terms(document_frequency DESC);

CREATE TABLE IF NOT EXISTS postings (
	document_id         TEXT NOT NULL,
	term_id             TEXT NOT NULL,
	term_frequency      INTEGER NOT NULL DEFAULT 0,
	character_positions TEXT NOT NULL DEFAULT '[]',
	term_positions      TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (document_id, term_id),
	FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
	FOREIGN KEY (term_id) REFERENCES terms(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_postings_term_id ON postings(term_id);
CREATE INDEX IF NOT EXISTS idx_postings_document_id ON postings(document_id);

CREATE TABLE IF NOT EXISTS labels (
	id          TEXT PRIMARY KEY,
	document_id TEXT,
	label       TEXT NOT NULL,
	label_lc    TEXT NOT NULL,
	FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_labels_doc_label ON labels(
	IFNULL(document_id, ''), label_lc
);
CREATE INDEX IF NOT EXISTS idx_labels_label ON labels(label_lc);

CREATE TABLE IF NOT EXISTS tags (
	id          TEXT PRIMARY KEY,
	document_id TEXT,
	key         TEXT NOT NULL,
	value       TEXT,
	FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_doc_key ON tags(
	IFNULL(document_id, ''), key
);
CREATE INDEX IF NOT EXISTS idx_tags_key_value ON tags(key, value);
`

// dsnPragmas carries the engine tuning — WAL journaling,
// synchronous=NORMAL, 64 MiB cache, memory temp store, 256 MiB mmap, 5s busy
// timeout, foreign keys on — as modernc.org/sqlite DSN parameters, so every
// connection database/sql opens from the pool gets them, not just the one a
// bare PRAGMA statement would happen to reach.
var dsnPragmas = []string{
	"_pragma=journal_mode(WAL)",
	"_pragma=synchronous(NORMAL)",
	"_pragma=cache_size(-65536)",
	"_pragma=temp_store(MEMORY)",
	"_pragma=mmap_size(268435456)",
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
}

func dsn(path string) string {
	return "file:" + path + "?" + strings.Join(dsnPragmas, "&")
}
