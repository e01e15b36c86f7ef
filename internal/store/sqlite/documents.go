package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jchristn/verbex/internal/model"
	"github.com/jchristn/verbex/internal/store"
)

// InsertDocumentRow implements store.Backend.
func (s *Store) InsertDocumentRow(ctx context.Context, doc model.Document) error {
	_, err := s.w(ctx).ExecContext(ctx, `
		INSERT INTO documents
			(id, name, content_sha256, document_length, term_count, indexed_utc, last_modified_utc, created_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.ContentSHA256, doc.DocumentLength, doc.TermCount,
		doc.IndexedUTC.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
		doc.LastModifiedUTC.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
		doc.CreatedUTC.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("sqlite: insert document: %w", err)
	}
	return nil
}

// DeleteDocumentCascade implements store.Backend. Foreign keys with
// ON DELETE CASCADE remove postings/labels/tags scoped to this document;
// index-level labels/tags (document_id NULL) are untouched.
func (s *Store) DeleteDocumentCascade(ctx context.Context, id string) error {
	res, err := s.w(ctx).ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete document: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (model.Document, error) {
	return s.scanOneDocument(ctx, `
		SELECT id, name, content_sha256, document_length, term_count, indexed_utc, last_modified_utc, created_utc
		FROM documents WHERE id = ?`, id)
}

func (s *Store) GetDocumentByName(ctx context.Context, name string) (model.Document, error) {
	return s.scanOneDocument(ctx, `
		SELECT id, name, content_sha256, document_length, term_count, indexed_utc, last_modified_utc, created_utc
		FROM documents WHERE name = ?`, name)
}

func (s *Store) scanOneDocument(ctx context.Context, query string, arg any) (model.Document, error) {
	row := s.q(ctx).QueryRowContext(ctx, query, arg)
	doc, err := scanDocumentRow(row)
	if err == sql.ErrNoRows {
		return model.Document{}, store.ErrNotFound
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("sqlite: get document: %w", err)
	}
	return doc, nil
}

func scanDocumentRow(row *sql.Row) (model.Document, error) {
	var doc model.Document
	var indexed, modified, created string
	if err := row.Scan(&doc.ID, &doc.Name, &doc.ContentSHA256, &doc.DocumentLength, &doc.TermCount,
		&indexed, &modified, &created); err != nil {
		return model.Document{}, err
	}
	doc.IndexedUTC = parseTime(indexed)
	doc.LastModifiedUTC = parseTime(modified)
	doc.CreatedUTC = parseTime(created)
	return doc, nil
}

func (s *Store) DocumentExists(ctx context.Context, id string) (bool, error) {
	return s.existsBy(ctx, `SELECT 1 FROM documents WHERE id = ?`, id)
}

func (s *Store) DocumentExistsByName(ctx context.Context, name string) (bool, error) {
	return s.existsBy(ctx, `SELECT 1 FROM documents WHERE name = ?`, name)
}

func (s *Store) existsBy(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := s.q(ctx).QueryRowContext(ctx, query, arg).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: exists: %w", err)
	}
	return true, nil
}

func (s *Store) ListDocuments(ctx context.Context, opts store.ListOptions) ([]model.Document, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, name, content_sha256, document_length, term_count, indexed_utc, last_modified_utc, created_utc
		FROM documents ORDER BY id ASC LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list documents: %w", err)
	}
	defer rows.Close()

	out := []model.Document{}
	for rows.Next() {
		var doc model.Document
		var indexed, modified, created string
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.ContentSHA256, &doc.DocumentLength, &doc.TermCount,
			&indexed, &modified, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan document: %w", err)
		}
		doc.IndexedUTC = parseTime(indexed)
		doc.LastModifiedUTC = parseTime(modified)
		doc.CreatedUTC = parseTime(created)
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) DocumentTerms(ctx context.Context, id string) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT t.term FROM postings p JOIN terms t ON t.id = p.term_id
		WHERE p.document_id = ? ORDER BY t.term ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: document terms: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, err
		}
		out = append(out, term)
	}
	return out, rows.Err()
}

func (s *Store) GetDocumentPostings(ctx context.Context, documentID string) ([]model.Posting, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT document_id, term_id, term_frequency, character_positions, term_positions
		FROM postings WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: document postings: %w", err)
	}
	defer rows.Close()

	var out []model.Posting
	for rows.Next() {
		p, err := scanPostingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPostingRow(rows *sql.Rows) (model.Posting, error) {
	var p model.Posting
	var charJSON, wordJSON string
	if err := rows.Scan(&p.DocumentID, &p.TermID, &p.TermFrequency, &charJSON, &wordJSON); err != nil {
		return model.Posting{}, fmt.Errorf("sqlite: scan posting: %w", err)
	}
	_ = json.Unmarshal([]byte(charJSON), &p.CharacterPositions)
	_ = json.Unmarshal([]byte(wordJSON), &p.TermPositions)
	return p, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite wraps the sqlite3 result code in its error string;
	// matching on the message avoids a hard dependency on its internal
	// error type.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
