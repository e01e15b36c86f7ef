package sqlite

import (
	"database/sql"
	"encoding/json"

	"github.com/jchristn/verbex/internal/model"
)

func scanDocumentFromRows(rows *sql.Rows) (model.Document, error) {
	var doc model.Document
	var indexed, modified, created string
	if err := rows.Scan(&doc.ID, &doc.Name, &doc.ContentSHA256, &doc.DocumentLength, &doc.TermCount,
		&indexed, &modified, &created); err != nil {
		return model.Document{}, err
	}
	doc.IndexedUTC = parseTime(indexed)
	doc.LastModifiedUTC = parseTime(modified)
	doc.CreatedUTC = parseTime(created)
	return doc, nil
}

func decodePositions(js string) []int {
	var out []int
	_ = json.Unmarshal([]byte(js), &out)
	return out
}
