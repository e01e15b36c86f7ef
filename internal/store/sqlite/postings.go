package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jchristn/verbex/internal/model"
)

// InsertPostingsBatch implements store.Backend. A posting is replaced
// wholesale on conflict, so re-inserting a (document, term) pair behaves
// like remove-then-add even outside the indexer's explicit re-ingest path.
func (s *Store) InsertPostingsBatch(ctx context.Context, postings []model.Posting) error {
	q := s.w(ctx)
	for _, p := range postings {
		charJSON, err := json.Marshal(p.CharacterPositions)
		if err != nil {
			return fmt.Errorf("sqlite: marshal character positions: %w", err)
		}
		wordJSON, err := json.Marshal(p.TermPositions)
		if err != nil {
			return fmt.Errorf("sqlite: marshal term positions: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO postings (document_id, term_id, term_frequency, character_positions, term_positions)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(document_id, term_id) DO UPDATE SET
				term_frequency = excluded.term_frequency,
				character_positions = excluded.character_positions,
				term_positions = excluded.term_positions`,
			p.DocumentID, p.TermID, p.TermFrequency, string(charJSON), string(wordJSON))
		if err != nil {
			return fmt.Errorf("sqlite: insert posting: %w", err)
		}
	}
	return nil
}
