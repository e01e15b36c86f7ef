package verbex

import (
	"fmt"
	"log/slog"
)

// StorageMode selects the backend an Index uses.
type StorageMode int

const (
	// StorageInMemory keeps all state in process memory; nothing survives
	// process exit.
	StorageInMemory StorageMode = iota
	// StorageOnDisk persists to a single embedded relational database file.
	StorageOnDisk
)

// Tokenizer splits raw text into a token stream. Supplying a custom one
// replaces the split stage of the default pipeline; later stages still run
// over its output.
type Tokenizer interface {
	Tokenize(text string) []RawToken
}

// RawToken is the output of the split stage: a token plus its offsets.
type RawToken struct {
	Text      string
	CharStart int
	CharEnd   int
	WordIndex int
}

// Lemmatizer reduces a normalized word to its dictionary form.
type Lemmatizer interface {
	Lemmatize(word string) string
}

// StopWordRemover reports whether a word should be dropped from the index.
type StopWordRemover interface {
	IsStopWord(word string) bool
}

// Config configures an Index at creation time. The zero value is invalid;
// use NewConfig to get sane defaults, or call Validate before use.
type Config struct {
	Name string

	StorageMode      StorageMode
	StorageDirectory string // default: $HOME/.vbx/indices/<name>
	DatabaseFilename string // default: index.db

	DefaultMaxSearchResults     int     // default 100
	PhraseSearchBonus           float64 // default 2.0
	SigmoidNormalizationDivisor float64 // default 10.0

	MinTokenLength int // 0 = no limit
	MaxTokenLength int // 0 = no limit

	Tokenizer       Tokenizer
	Lemmatizer      Lemmatizer
	StopWordRemover StopWordRemover

	// MaxConcurrentOps bounds the persistent backend's reader connection
	// pool. Default 4.
	MaxConcurrentOps int

	Logger *slog.Logger
}

// NewConfig returns a Config with every default applied, for the given
// index name.
func NewConfig(name string) Config {
	return Config{
		Name:                        name,
		StorageMode:                 StorageInMemory,
		DatabaseFilename:            "index.db",
		DefaultMaxSearchResults:     100,
		PhraseSearchBonus:           2.0,
		SigmoidNormalizationDivisor: 10.0,
		MaxConcurrentOps:            4,
		Logger:                      slog.Default(),
	}
}

// Validate rejects negative token lengths, a non-positive
// DefaultMaxSearchResults, and non-positive scoring parameters, and fills
// in defaults for fields the caller left zero.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("verbex: config: %w: name must not be empty", ErrInvalidArgument)
	}
	if c.MinTokenLength < 0 {
		return fmt.Errorf("verbex: config: %w: min_token_length must be >= 0", ErrInvalidArgument)
	}
	if c.MaxTokenLength < 0 {
		return fmt.Errorf("verbex: config: %w: max_token_length must be >= 0", ErrInvalidArgument)
	}
	if c.MaxTokenLength > 0 && c.MinTokenLength > c.MaxTokenLength {
		return fmt.Errorf("verbex: config: %w: min_token_length must be <= max_token_length", ErrInvalidArgument)
	}
	if c.DefaultMaxSearchResults <= 0 {
		return fmt.Errorf("verbex: config: %w: default_max_search_results must be positive", ErrInvalidArgument)
	}
	if c.PhraseSearchBonus <= 0 {
		return fmt.Errorf("verbex: config: %w: phrase_search_bonus must be > 0", ErrInvalidArgument)
	}
	if c.SigmoidNormalizationDivisor <= 0 {
		return fmt.Errorf("verbex: config: %w: sigmoid_normalization_divisor must be > 0", ErrInvalidArgument)
	}
	if c.MaxConcurrentOps <= 0 {
		c.MaxConcurrentOps = 4
	}
	if c.DatabaseFilename == "" {
		c.DatabaseFilename = "index.db"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
