package sqlite

import (
	"context"
	"fmt"

	"github.com/jchristn/verbex/internal/model"
)

// Statistics implements store.Backend.
func (s *Store) Statistics(ctx context.Context) (model.Statistics, error) {
	var stats model.Statistics
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM terms),
			(SELECT COUNT(*) FROM postings),
			(SELECT COALESCE(SUM(document_length), 0) FROM documents)`)
	if err := row.Scan(&stats.DocumentCount, &stats.TermCount, &stats.PostingCount, &stats.TotalDocSize); err != nil {
		return model.Statistics{}, fmt.Errorf("sqlite: statistics: %w", err)
	}
	if stats.DocumentCount > 0 {
		stats.AverageDocLength = float64(stats.TotalDocSize) / float64(stats.DocumentCount)
	}
	return stats, nil
}
