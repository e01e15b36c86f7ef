package tokenizer

import "strings"

// irregular holds the dictionary-lookup exceptions that regular suffix rules
// would get wrong. Checked before any suffix stripping.
var irregular = map[string]string{
	"was":      "be",
	"were":     "be",
	"are":      "be",
	"is":       "be",
	"been":     "be",
	"had":      "have",
	"has":      "have",
	"went":     "go",
	"gone":     "go",
	"children": "child",
	"mice":     "mouse",
	"men":      "man",
	"women":    "woman",
	"feet":     "foot",
	"teeth":    "tooth",
	"geese":    "goose",
	"people":   "person",
}

// BasicLemmatizer is the library's reference lemmatizer: an irregular-form
// dictionary lookup followed by regular suffix rules. Input
// is matched case-insensitively; the normalize stage already case-folds
// tokens ahead of this stage in the default Pipeline, but BasicLemmatizer
// also lower-cases defensively so it behaves correctly when used standalone.
type BasicLemmatizer struct{}

// Lemmatize implements Lemmatizer.
func (BasicLemmatizer) Lemmatize(word string) string {
	w := strings.ToLower(word)
	if lemma, ok := irregular[w]; ok {
		return lemma
	}
	return applySuffixRules(w)
}

// applySuffixRules implements the regular-form reductions -ing, -ed, -es,
// -s. Order matters: longer, more specific suffixes are tried first so
// "running" doesn't get mangled by a bare "-s" rule.
func applySuffixRules(w string) string {
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		// e.g. "cities" -> "city"
		return w[:len(w)-3] + "y"

	case strings.HasSuffix(w, "ing") && len(w)-3 >= 2:
		stem := w[:len(w)-3]
		return dedoubleOrRestoreE(stem)

	case strings.HasSuffix(w, "ed") && len(w)-2 >= 2:
		stem := w[:len(w)-2]
		return dedoubleOrRestoreE(stem)

	case strings.HasSuffix(w, "es") && len(w) > 4 && endsInSibilant(w[:len(w)-2]):
		return w[:len(w)-2]

	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
		return w[:len(w)-1]
	}
	return w
}

// dedoubleOrRestoreE undoes a doubled final consonant left by stripping
// "-ing"/"-ed" (e.g. "runn" -> "run"). Any doubled final consonant is
// collapsed, including one that belongs to the word itself ("passed" ->
// "pas"), and a final "e" dropped before the suffix is not restored
// ("making" -> "mak").
func dedoubleOrRestoreE(stem string) string {
	n := len(stem)
	if n >= 2 && stem[n-1] == stem[n-2] && isConsonant(rune(stem[n-1])) {
		return stem[:n-1]
	}
	return stem
}

func isConsonant(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	default:
		return r >= 'a' && r <= 'z'
	}
}

func endsInSibilant(stem string) bool {
	for _, suf := range []string{"s", "x", "z", "ch", "sh"} {
		if strings.HasSuffix(stem, suf) {
			return true
		}
	}
	return false
}
