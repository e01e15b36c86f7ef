package sqlite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// IndexConfigFilename is the optional manager-written sidecar file living
// alongside index.db.
const IndexConfigFilename = "index-config.json"

// IndexConfig mirrors the on-disk index-config.json schema. It is written
// by the manager, not the core storage engine, but lives here because the
// manager's discover() needs the same file-shape knowledge as a store.
type IndexConfig struct {
	Description        string    `json:"description"`
	StorageMode        string    `json:"storage_mode"`
	MinTokenLength     int       `json:"min_token_length"`
	MaxTokenLength     int       `json:"max_token_length"`
	HasLemmatizer      bool      `json:"has_lemmatizer"`
	HasStopWordRemover bool      `json:"has_stop_word_remover"`
	CreatedAt          time.Time `json:"created_at"`
	LastAccessedAt     time.Time `json:"last_accessed_at"`
}

// WriteIndexConfig writes cfg to <dir>/index-config.json, creating dir if
// necessary.
func WriteIndexConfig(dir string, cfg IndexConfig) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sqlite: index config: mkdir: %w", err)
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("sqlite: index config: marshal: %w", err)
	}
	path := filepath.Join(dir, IndexConfigFilename)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("sqlite: index config: write: %w", err)
	}
	return nil
}

// ReadIndexConfig reads <dir>/index-config.json. It returns os.ErrNotExist
// (wrapped) if the file is absent, which callers treat as "not a
// recognized index directory" during discovery.
func ReadIndexConfig(dir string) (IndexConfig, error) {
	path := filepath.Join(dir, IndexConfigFilename)
	b, err := os.ReadFile(path)
	if err != nil {
		return IndexConfig{}, err
	}
	var cfg IndexConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return IndexConfig{}, fmt.Errorf("sqlite: index config: unmarshal: %w", err)
	}
	return cfg, nil
}

// TouchLastAccessed updates last_accessed_at in place, leaving the rest of
// the sidecar file untouched. Missing files are treated as a no-op since
// the sidecar is optional.
func TouchLastAccessed(dir string) error {
	cfg, err := ReadIndexConfig(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cfg.LastAccessedAt = time.Now().UTC()
	return WriteIndexConfig(dir, cfg)
}
