package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jchristn/verbex/internal/store"
)

// SearchCandidates implements store.Backend by combining the boolean term
// mode with label/tag constraints in one multi-join query, rather than
// filtering candidates client-side.
func (s *Store) SearchCandidates(ctx context.Context, filter store.SearchFilter) ([]store.CandidateDocument, error) {
	if len(filter.TermIDs) == 0 {
		return nil, nil
	}

	var b strings.Builder
	var args []any

	placeholders := make([]string, len(filter.TermIDs))
	for i, id := range filter.TermIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	b.WriteString(`
		SELECT d.id, d.name, d.content_sha256, d.document_length, d.term_count,
		       d.indexed_utc, d.last_modified_utc, d.created_utc
		FROM documents d
		JOIN postings p ON p.document_id = d.id
		WHERE p.term_id IN (` + strings.Join(placeholders, ",") + `)`)

	for _, label := range filter.Labels {
		b.WriteString(` AND EXISTS (SELECT 1 FROM labels l WHERE l.document_id = d.id AND l.label_lc = ?)`)
		args = append(args, strings.ToLower(label))
	}
	for key, val := range filter.Tags {
		b.WriteString(` AND EXISTS (SELECT 1 FROM tags t WHERE t.document_id = d.id AND t.key = ? AND t.value = ?)`)
		args = append(args, key, val)
	}

	b.WriteString(` GROUP BY d.id`)
	if filter.AndLogic {
		b.WriteString(fmt.Sprintf(` HAVING COUNT(DISTINCT p.term_id) = %d`, len(filter.TermIDs)))
	}

	rows, err := s.q(ctx).QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search candidates: %w", err)
	}
	defer rows.Close()

	var out []store.CandidateDocument
	var docIDs []string
	for rows.Next() {
		doc, err := scanDocumentFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan candidate: %w", err)
		}
		out = append(out, store.CandidateDocument{Document: doc, MatchedTerms: map[string]store.MatchedTerm{}})
		docIDs = append(docIDs, doc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	matched, err := s.fetchMatchedTerms(ctx, docIDs, filter.TermIDs)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].MatchedTerms = matched[out[i].Document.ID]
	}
	return out, nil
}

func (s *Store) fetchMatchedTerms(ctx context.Context, docIDs, termIDs []string) (map[string]map[string]store.MatchedTerm, error) {
	docPlaceholders := strings.Repeat("?,", len(docIDs))
	docPlaceholders = docPlaceholders[:len(docPlaceholders)-1]
	termPlaceholders := strings.Repeat("?,", len(termIDs))
	termPlaceholders = termPlaceholders[:len(termPlaceholders)-1]

	args := make([]any, 0, len(docIDs)+len(termIDs))
	for _, d := range docIDs {
		args = append(args, d)
	}
	for _, t := range termIDs {
		args = append(args, t)
	}

	rows, err := s.q(ctx).QueryContext(ctx, fmt.Sprintf(`
		SELECT p.document_id, t.term, p.term_frequency, t.document_frequency, p.term_positions
		FROM postings p
		JOIN terms t ON t.id = p.term_id
		WHERE p.document_id IN (%s) AND p.term_id IN (%s)`, docPlaceholders, termPlaceholders), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetch matched terms: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]store.MatchedTerm, len(docIDs))
	for rows.Next() {
		var docID, term, wordJSON string
		var tf, df int
		if err := rows.Scan(&docID, &term, &tf, &df, &wordJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan matched term: %w", err)
		}
		mt := store.MatchedTerm{TermFrequency: tf, DocumentFrequency: df}
		mt.TermPositions = decodePositions(wordJSON)
		if out[docID] == nil {
			out[docID] = make(map[string]store.MatchedTerm)
		}
		out[docID][term] = mt
	}
	return out, rows.Err()
}
