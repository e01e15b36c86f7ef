package verbex

import "github.com/jchristn/verbex/internal/tokenizer"

// NewBasicLemmatizer returns the library-owned reference lemmatizer: an
// irregular-form dictionary lookup followed by regular suffix rules
// (-s, -es, -ing, -ed). Input is matched case-insensitively.
func NewBasicLemmatizer() Lemmatizer { return tokenizer.BasicLemmatizer{} }

// NewBasicStopWordRemover returns the library-owned reference stop-word
// filter over a small standard English list. Comparison is case-insensitive.
func NewBasicStopWordRemover() StopWordRemover { return tokenizer.BasicStopWordRemover{} }
