package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jchristn/verbex/internal/model"
)

// docSlot converts an empty document id (index-level) to NULL for storage,
// matching the labels/tags table's nullable document_id column.
func docSlot(documentID string) any {
	if documentID == "" {
		return nil
	}
	return documentID
}

// AddLabel implements store.Backend. Uniqueness is (document_id, label)
// case-insensitively; re-adding an existing label is a no-op.
func (s *Store) AddLabel(ctx context.Context, documentID, label string) error {
	_, err := s.w(ctx).ExecContext(ctx, `
		INSERT INTO labels (id, document_id, label, label_lc)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(IFNULL(document_id, ''), label_lc) DO NOTHING`,
		s.gen.New(), docSlot(documentID), label, strings.ToLower(label))
	if err != nil {
		return fmt.Errorf("sqlite: add label: %w", err)
	}
	return nil
}

// RemoveLabel implements store.Backend.
func (s *Store) RemoveLabel(ctx context.Context, documentID, label string) error {
	_, err := s.w(ctx).ExecContext(ctx, `
		DELETE FROM labels WHERE IFNULL(document_id, '') = IFNULL(?, '') AND label_lc = ?`,
		docSlot(documentID), strings.ToLower(label))
	if err != nil {
		return fmt.Errorf("sqlite: remove label: %w", err)
	}
	return nil
}

// ListLabels implements store.Backend.
func (s *Store) ListLabels(ctx context.Context, documentID string) ([]model.Label, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, IFNULL(document_id, ''), label FROM labels
		WHERE IFNULL(document_id, '') = IFNULL(?, '') ORDER BY label ASC`, docSlot(documentID))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list labels: %w", err)
	}
	defer rows.Close()

	out := []model.Label{}
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.Label); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ReplaceLabels implements store.Backend.
func (s *Store) ReplaceLabels(ctx context.Context, documentID string, labels []string) error {
	q := s.w(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM labels WHERE IFNULL(document_id, '') = IFNULL(?, '')`, docSlot(documentID)); err != nil {
		return fmt.Errorf("sqlite: clear labels: %w", err)
	}
	for _, l := range labels {
		if err := s.AddLabel(ctx, documentID, l); err != nil {
			return err
		}
	}
	return nil
}

// AddLabelsBatch implements store.Backend's mandatory batch primitive.
func (s *Store) AddLabelsBatch(ctx context.Context, documentID string, labels []string) error {
	for _, l := range labels {
		if err := s.AddLabel(ctx, documentID, l); err != nil {
			return err
		}
	}
	return nil
}
