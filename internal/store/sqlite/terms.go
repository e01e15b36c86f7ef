package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jchristn/verbex/internal/model"
	"github.com/jchristn/verbex/internal/store"
)

// AddOrGetTermsBatch implements store.Backend: each distinct term is
// inserted if new, or its existing id is returned, via an upsert that
// leaves the row's frequencies untouched on conflict.
func (s *Store) AddOrGetTermsBatch(ctx context.Context, terms []string) (map[string]string, error) {
	out := make(map[string]string, len(terms))
	q := s.w(ctx)
	for _, t := range terms {
		id := s.gen.New()
		_, err := q.ExecContext(ctx, `
			INSERT INTO terms (id, term, document_frequency, total_frequency)
			VALUES (?, ?, 0, 0)
			ON CONFLICT(term) DO NOTHING`, id, t)
		if err != nil {
			return nil, fmt.Errorf("sqlite: upsert term %q: %w", t, err)
		}
		var resolved string
		if err := q.QueryRowContext(ctx, `SELECT id FROM terms WHERE term = ?`, t).Scan(&resolved); err != nil {
			return nil, fmt.Errorf("sqlite: resolve term %q: %w", t, err)
		}
		out[t] = resolved
	}
	return out, nil
}

// IncrementTermFrequenciesBatch implements store.Backend.
func (s *Store) IncrementTermFrequenciesBatch(ctx context.Context, deltas map[string]store.TermDelta) error {
	q := s.w(ctx)
	for termID, d := range deltas {
		_, err := q.ExecContext(ctx, `
			UPDATE terms SET document_frequency = document_frequency + ?, total_frequency = total_frequency + ?
			WHERE id = ?`, d.DocFreqDelta, d.TotalFreqDelta, termID)
		if err != nil {
			return fmt.Errorf("sqlite: increment term frequencies: %w", err)
		}
	}
	return nil
}

// DecrementTermFrequenciesBatch implements store.Backend. Orphan terms
// (both frequencies at zero) are pruned immediately so they are invisible
// to subsequent queries and term statistics.
func (s *Store) DecrementTermFrequenciesBatch(ctx context.Context, deltas map[string]store.TermDelta) error {
	q := s.w(ctx)
	for termID, d := range deltas {
		_, err := q.ExecContext(ctx, `
			UPDATE terms SET
				document_frequency = MAX(0, document_frequency - ?),
				total_frequency = MAX(0, total_frequency - ?)
			WHERE id = ?`, d.DocFreqDelta, d.TotalFreqDelta, termID)
		if err != nil {
			return fmt.Errorf("sqlite: decrement term frequencies: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
			DELETE FROM terms WHERE id = ? AND document_frequency = 0 AND total_frequency = 0`, termID); err != nil {
			return fmt.Errorf("sqlite: prune term: %w", err)
		}
	}
	return nil
}

// TermStats implements store.Backend.
func (s *Store) TermStats(ctx context.Context, term string) (model.TermStatistics, bool, error) {
	var ts model.TermStatistics
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT document_frequency, total_frequency FROM terms WHERE term = ?`, term,
	).Scan(&ts.DocumentFrequency, &ts.TotalFrequency)
	if err == sql.ErrNoRows {
		return model.TermStatistics{}, false, nil
	}
	if err != nil {
		return model.TermStatistics{}, false, fmt.Errorf("sqlite: term stats: %w", err)
	}
	return ts, true, nil
}

// ResolveTermIDs implements store.Backend: used by the retrieval engine to
// translate a query's normalized terms into term ids before candidate
// selection.
func (s *Store) ResolveTermIDs(ctx context.Context, terms []string) (map[string]string, error) {
	out := make(map[string]string, len(terms))
	q := s.q(ctx)
	for _, t := range terms {
		var id string
		err := q.QueryRowContext(ctx, `SELECT id FROM terms WHERE term = ?`, t).Scan(&id)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("sqlite: resolve term id %q: %w", t, err)
		}
		out[t] = id
	}
	return out, nil
}
