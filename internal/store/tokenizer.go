package store

import (
	"regexp"
	"strings"
	"unicode"
)

var identRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// codeStopWords are identifiers so common in source text that they add
// only noise to BM25 scoring.
var codeStopWords = buildStopWordSet([]string{
	"func", "function", "def", "fn", "return", "if", "else", "for",
	"while", "var", "let", "const", "new", "nil", "null", "none",
	"true", "false", "self", "this", "err", "error", "the", "and",
	"import", "from", "package", "pub", "use", "class", "struct",
})

// TokenizeCode splits text with code-aware rules: identifiers are split
// on snake_case and camelCase boundaries and lowercased, single-letter
// fragments dropped.
func TokenizeCode(text string) []string {
	var tokens []string
	for _, word := range identRegex.FindAllString(text, -1) {
		for _, sub := range splitIdentifier(word) {
			lower := strings.ToLower(sub)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

// splitIdentifier breaks an identifier into its word parts.
func splitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var out []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				out = append(out, splitCamel(part)...)
			}
		}
		return out
	}
	return splitCamel(token)
}

// splitCamel splits camelCase and PascalCase, keeping acronym runs
// together: "parseHTTPRequest" -> ["parse", "HTTP", "Request"].
func splitCamel(s string) []string {
	if s == "" {
		return nil
	}

	var out []string
	var cur strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if cur.Len() > 0 {
					out = append(out, cur.String())
					cur.Reset()
				}
			}
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
