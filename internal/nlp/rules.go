package nlp

import (
	"context"
	"strings"
	"unicode"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

var (
	verbs = map[string]bool{
		"move": true, "put": true, "transfer": true, "throw": true,
		"place": true, "drop": true, "bring": true, "take": true,
	}
	prepositions = map[string]bool{
		"in": true, "inside": true, "into": true, "to": true, "onto": true,
	}
	articles = map[string]bool{"the": true, "a": true, "an": true}
)

// RuleExtractor reads commands of the form
//
//	[verb] [the] <item> <in|inside|into|to|onto> [the] <location>
//
// joined by "and", "then", "after that" or commas. A clause without a verb
// reuses the previous one. Item and location phrases are resolved through
// the catalog's aliases.
type RuleExtractor struct {
	resolver resolver
}

var _ Extractor = (*RuleExtractor)(nil)

// NewRuleExtractor creates a RuleExtractor over catalog.
func NewRuleExtractor(catalog types.Catalog) *RuleExtractor {
	return &RuleExtractor{resolver: aliasResolver(catalog)}
}

// Extract implements Extractor.
func (e *RuleExtractor) Extract(_ context.Context, text string) ([]types.Intent, error) {
	clauses := splitClauses(text)
	if len(clauses) == 0 {
		return nil, &ParseError{Input: text, Reason: "no instruction"}
	}

	pairs := make([]pair, 0, len(clauses))
	for _, clause := range clauses {
		p, ok := parseClause(clause)
		if !ok {
			return nil, &ParseError{Input: text, Reason: "expected <item> to <location> in " + quote(clause)}
		}
		pairs = append(pairs, p)
	}
	return validate(pairs, e.resolver)
}

// splitClauses lowercases text, drops punctuation and splits it at
// connectors.
func splitClauses(text string) [][]string {
	var (
		clauses [][]string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			clauses = append(clauses, current)
			current = nil
		}
	}

	for _, segment := range strings.Split(strings.ToLower(text), ",") {
		words := strings.FieldsFunc(segment, func(r rune) bool {
			return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '_' && r != '\'')
		})
		for i := 0; i < len(words); i++ {
			switch {
			case words[i] == "and" || words[i] == "then":
				flush()
			case words[i] == "after" && i+1 < len(words) && words[i+1] == "that":
				flush()
				i++
			default:
				current = append(current, words[i])
			}
		}
		flush()
	}
	return clauses
}

func parseClause(words []string) (pair, bool) {
	if len(words) > 0 && verbs[words[0]] {
		words = words[1:]
	}
	words = trimArticle(words)

	// The first preposition after a non-empty item phrase splits the clause.
	for i := 1; i < len(words); i++ {
		if !prepositions[words[i]] {
			continue
		}
		item := words[:i]
		location := trimArticle(words[i+1:])
		if len(location) == 0 {
			return pair{}, false
		}
		return pair{item: strings.Join(item, " "), location: strings.Join(location, " ")}, true
	}
	return pair{}, false
}

func trimArticle(words []string) []string {
	if len(words) > 0 && articles[words[0]] {
		return words[1:]
	}
	return words
}

func quote(words []string) string {
	return `"` + strings.Join(words, " ") + `"`
}
