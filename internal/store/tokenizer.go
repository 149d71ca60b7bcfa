package store

import (
	"regexp"
	"strings"
	"unicode"
)

// identRegex matches identifier-like runs before code-aware splitting.
var identRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// TokenizeCode splits text with code-aware rules: camelCase, PascalCase
// and snake_case identifiers are broken into their parts, everything is
// lowercased, and tokens shorter than two characters are dropped.
func TokenizeCode(text string) []string {
	var tokens []string

	for _, word := range identRegex.FindAllString(text, -1) {
		for _, part := range SplitCodeToken(word) {
			lower := strings.ToLower(part)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}

	return tokens
}

// SplitCodeToken splits a single identifier on underscores and case
// transitions.
func SplitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, SplitCamelCase(part)...)
			}
		}
		return result
	}

	return SplitCamelCase(token)
}

// SplitCamelCase splits camelCase and PascalCase identifiers, keeping
// acronym runs together:
//
//	"getUserById"      -> ["get", "User", "By", "Id"]
//	"HTTPHandler"      -> ["HTTP", "Handler"]
//	"parseHTTPRequest" -> ["parse", "HTTP", "Request"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			// Boundary when leaving lowercase or when an acronym run ends
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// BuildStopWordMap converts a stop word list into a lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
