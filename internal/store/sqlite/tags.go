package sqlite

import (
	"context"
	"fmt"

	"github.com/jchristn/verbex/internal/model"
)

// SetTag implements store.Backend: upsert by (document_id, key).
func (s *Store) SetTag(ctx context.Context, documentID, key string, value *string) error {
	_, err := s.w(ctx).ExecContext(ctx, `
		INSERT INTO tags (id, document_id, key, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(IFNULL(document_id, ''), key) DO UPDATE SET value = excluded.value`,
		s.gen.New(), docSlot(documentID), key, value)
	if err != nil {
		return fmt.Errorf("sqlite: set tag: %w", err)
	}
	return nil
}

// RemoveTag implements store.Backend.
func (s *Store) RemoveTag(ctx context.Context, documentID, key string) error {
	_, err := s.w(ctx).ExecContext(ctx, `
		DELETE FROM tags WHERE IFNULL(document_id, '') = IFNULL(?, '') AND key = ?`, docSlot(documentID), key)
	if err != nil {
		return fmt.Errorf("sqlite: remove tag: %w", err)
	}
	return nil
}

// ListTags implements store.Backend.
func (s *Store) ListTags(ctx context.Context, documentID string) ([]model.Tag, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, IFNULL(document_id, ''), key, value FROM tags
		WHERE IFNULL(document_id, '') = IFNULL(?, '') ORDER BY key ASC`, docSlot(documentID))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tags: %w", err)
	}
	defer rows.Close()

	out := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.Key, &t.Value); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplaceTags implements store.Backend.
func (s *Store) ReplaceTags(ctx context.Context, documentID string, tags map[string]*string) error {
	q := s.w(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM tags WHERE IFNULL(document_id, '') = IFNULL(?, '')`, docSlot(documentID)); err != nil {
		return fmt.Errorf("sqlite: clear tags: %w", err)
	}
	for k, v := range tags {
		if err := s.SetTag(ctx, documentID, k, v); err != nil {
			return err
		}
	}
	return nil
}

// AddTagsBatch implements store.Backend's mandatory batch primitive (upsert).
func (s *Store) AddTagsBatch(ctx context.Context, documentID string, tags map[string]*string) error {
	for k, v := range tags {
		if err := s.SetTag(ctx, documentID, k, v); err != nil {
			return err
		}
	}
	return nil
}
