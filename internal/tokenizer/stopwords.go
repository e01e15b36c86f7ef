package tokenizer

import "strings"

// basicStopWords is a small, standard English stop-word list. Comparison is
// case-insensitive.
var basicStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"to": {}, "was": {}, "were": {}, "will": {}, "with": {}, "this": {},
	"but": {}, "not": {}, "they": {}, "you": {}, "i": {}, "we": {}, "so": {},
}

// BasicStopWordRemover is the reference stop-word filter.
type BasicStopWordRemover struct{}

// IsStopWord implements StopWordRemover.
func (BasicStopWordRemover) IsStopWord(word string) bool {
	_, ok := basicStopWords[strings.ToLower(word)]
	return ok
}
