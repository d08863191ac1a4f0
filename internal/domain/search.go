package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSearchTokens = 30

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeSearchText убирает диакритику и всё, кроме латиницы и цифр.
func NormalizeSearchText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		stripped = strings.ToLower(s)
	}
	return strings.TrimSpace(nonAlnum.ReplaceAllString(stripped, " "))
}

// SearchTokens разбивает текст на уникальные токены длиной от двух символов.
func SearchTokens(input string) []string {
	normalized := NormalizeSearchText(input)
	if normalized == "" {
		return nil
	}

	seen := make(map[string]struct{})
	tokens := make([]string, 0, maxSearchTokens)
	for _, part := range strings.Fields(normalized) {
		if len(part) < 2 {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		tokens = append(tokens, part)
		if len(tokens) == maxSearchTokens {
			break
		}
	}
	return tokens
}

// ProductSearchTokens строит токены по slug, названию, описанию, бренду и категории.
func ProductSearchTokens(p Product) []string {
	return SearchTokens(strings.Join([]string{p.ID, p.Name, p.Description, p.Brand, p.Category}, " "))
}
