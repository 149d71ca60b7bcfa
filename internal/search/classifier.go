package search

import (
	"strings"
	"unicode"
)

// technicalSuffixes mark identifier-style class or type names.
var technicalSuffixes = []string{
	"Exception", "Error", "Model", "Router",
	"Request", "Response", "Handler", "Middleware",
}

// semanticIndicators signal conversational, natural-language intent.
var semanticIndicators = []string{
	"how to", "how do", "how does", "how can",
	"what is", "what are", "what does",
	"why does", "why is",
	"best way", "explain", "difference between",
}

// codePatternKeywords name code structures the query is about rather
// than text the code must contain verbatim.
var codePatternKeywords = []string{
	"async", "await", "def", "class", "decorator",
	"context manager", "generator", "lambda",
	"comprehension", "iterator",
}

// Classifier maps a query string to a shape category and the retrieval
// configuration that category calls for. Rule-based, synchronous and
// pure: it classifies every string and never fails.
type Classifier struct{}

// NewClassifier creates a rule-based query classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify determines the query class. Rules run in fixed priority
// order, first match wins, because the categories overlap by surface
// features: identifier shape beats question shape beats code keywords,
// and everything else is a concept query.
func (c *Classifier) Classify(query string) QueryClass {
	query = strings.TrimSpace(query)
	tokens := strings.Fields(query)
	lower := strings.ToLower(query)

	if c.isSpecificTerm(query, tokens) {
		return ClassSpecificTerm
	}
	if c.isSemantic(lower, tokens) {
		return ClassSemantic
	}
	if c.isCodePattern(lower) {
		return ClassCodePattern
	}
	return ClassConcept
}

// ConfigFor returns the fixed retrieval configuration for a class.
func (c *Classifier) ConfigFor(class QueryClass) SearchConfig {
	switch class {
	case ClassSpecificTerm:
		// Exact-identifier lookup: semantic similarity is irrelevant,
		// and reranking would only reshuffle exact matches.
		return SearchConfig{
			UseLexical:    true,
			UseDense:      false,
			LexicalWeight: 1.0,
			DenseWeight:   0.0,
			UseExpansion:  false,
			UseReranking:  false,
		}
	case ClassSemantic:
		return SearchConfig{
			UseLexical:    true,
			UseDense:      true,
			LexicalWeight: 1.0,
			DenseWeight:   1.0,
			UseExpansion:  false,
			UseReranking:  true,
		}
	case ClassCodePattern:
		// The pattern name may not appear verbatim in code text, so
		// dense retrieval is weighted above lexical.
		return SearchConfig{
			UseLexical:    true,
			UseDense:      true,
			LexicalWeight: 0.7,
			DenseWeight:   1.0,
			UseExpansion:  false,
			UseReranking:  true,
		}
	default: // ClassConcept
		return SearchConfig{
			UseLexical:    true,
			UseDense:      true,
			LexicalWeight: 1.0,
			DenseWeight:   1.0,
			UseExpansion:  true,
			UseReranking:  true,
		}
	}
}

// isSpecificTerm reports identifier-like queries: at most two tokens
// shaped like code naming.
func (c *Classifier) isSpecificTerm(query string, tokens []string) bool {
	if len(tokens) == 0 || len(tokens) > 2 {
		return false
	}

	if hasCaseTransition(query) {
		return true
	}
	if strings.Contains(query, "_") && !strings.Contains(query, " ") {
		return true
	}
	for _, suffix := range technicalSuffixes {
		if strings.HasSuffix(query, suffix) {
			return true
		}
	}
	return false
}

// isSemantic reports conversational queries.
func (c *Classifier) isSemantic(lower string, tokens []string) bool {
	for _, indicator := range semanticIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	if len(tokens) > 6 {
		return true
	}
	return strings.Contains(lower, "?")
}

// isCodePattern reports code-structure queries.
func (c *Classifier) isCodePattern(lower string) bool {
	for _, keyword := range codePatternKeywords {
		if containsWord(lower, keyword) {
			return true
		}
	}
	return false
}

// hasCaseTransition reports a lower-to-upper transition inside the
// string, the signature of camelCase and PascalCase identifiers.
func hasCaseTransition(s string) bool {
	runes := []rune(s)
	for i := 1; i < len(runes); i++ {
		if unicode.IsLower(runes[i-1]) && unicode.IsUpper(runes[i]) {
			return true
		}
	}
	return false
}

// containsWord reports whether keyword occurs in lower as a whole word
// (or whole phrase, for multi-word keywords).
func containsWord(lower, keyword string) bool {
	idx := strings.Index(lower, keyword)
	for idx >= 0 {
		beforeOK := idx == 0 || !isWordRune(rune(lower[idx-1]))
		end := idx + len(keyword)
		afterOK := end == len(lower) || !isWordRune(rune(lower[end]))
		if beforeOK && afterOK {
			return true
		}
		next := strings.Index(lower[idx+1:], keyword)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
