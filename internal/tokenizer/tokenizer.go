// Package tokenizer implements the default tokenizer pipeline:
// split → case fold → length filter → stop-word filter → lemmatize → emit.
// Queries are run through the same Pipeline as documents so that a query
// term compares against stored normalized terms.
package tokenizer

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Token is the final emitted unit: a normalized token plus its original
// char offset and its word index in the pre-filter split stream.
type Token struct {
	Normalized string
	CharStart  int
	WordIndex  int
}

// Splitter performs stage 1: splitting raw text into (raw, start, end, word
// index) tuples, before any normalization.
type Splitter interface {
	Split(text string) []RawToken
}

// RawToken is the output of the split stage.
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

// StopWordRemover reports whether a word should be dropped.
type StopWordRemover interface {
	IsStopWord(word string) bool
}

// Pipeline runs the configured stages over text.
type Pipeline struct {
	Split           Splitter
	MinTokenLength  int
	MaxTokenLength  int
	StopWordRemover StopWordRemover
	Lemmatizer      Lemmatizer

	fold cases.Caser
}

// New returns a Pipeline with the given overrides. A nil Split uses
// DefaultSplitter; nil StopWordRemover/Lemmatizer mean those stages are
// skipped.
func New(split Splitter, minLen, maxLen int, stop StopWordRemover, lemma Lemmatizer) *Pipeline {
	if split == nil {
		split = DefaultSplitter{}
	}
	return &Pipeline{
		Split:           split,
		MinTokenLength:  minLen,
		MaxTokenLength:  maxLen,
		StopWordRemover: stop,
		Lemmatizer:      lemma,
		fold:            cases.Fold(),
	}
}

// Run executes the full pipeline over text, producing normalized tokens in
// split order.
func (p *Pipeline) Run(text string) []Token {
	raw := p.Split.Split(text)
	out := make([]Token, 0, len(raw))
	for _, rt := range raw {
		norm := p.normalize(rt.Text)
		if norm == "" {
			continue
		}
		if !p.passesLength(norm) {
			continue
		}
		if p.StopWordRemover != nil && p.StopWordRemover.IsStopWord(norm) {
			continue
		}
		if p.Lemmatizer != nil {
			norm = p.Lemmatizer.Lemmatize(norm)
		}
		out = append(out, Token{
			Normalized: norm,
			CharStart:  rt.CharStart,
			WordIndex:  rt.WordIndex,
		})
	}
	return out
}

// normalize applies NFC normalization then locale-invariant case folding.
func (p *Pipeline) normalize(s string) string {
	s = norm.NFC.String(s)
	return p.fold.String(s)
}

func (p *Pipeline) passesLength(s string) bool {
	n := runeLen(s)
	if p.MinTokenLength > 0 && n < p.MinTokenLength {
		return false
	}
	if p.MaxTokenLength > 0 && n > p.MaxTokenLength {
		return false
	}
	return true
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// DefaultSplitter splits on Unicode whitespace, punctuation, and symbol
// boundaries.
type DefaultSplitter struct{}

// Split implements Splitter.
func (DefaultSplitter) Split(text string) []RawToken {
	var out []RawToken
	runes := []rune(text)
	word := 0
	start := -1

	flush := func(end int) {
		if start < 0 {
			return
		}
		out = append(out, RawToken{
			Text:      string(runes[start:end]),
			CharStart: start,
			CharEnd:   end,
			WordIndex: word,
		})
		word++
		start = -1
	}

	for i, r := range runes {
		if isBoundary(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(runes))
	return out
}

func isBoundary(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	if unicode.IsPunct(r) {
		return true
	}
	if unicode.IsSymbol(r) {
		return true
	}
	return false
}
