package nlp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// Problem is one unknown token in an instruction.
type Problem struct {
	// Kind is "item" or "location".
	Kind  string
	Token string
	// Suggestion is the closest known name, or empty. It is a hint only and
	// never substituted for Token.
	Suggestion string
}

func (p Problem) String() string {
	s := fmt.Sprintf("invalid %s: %s", p.Kind, p.Token)
	if p.Suggestion != "" {
		s += fmt.Sprintf(" (did you mean %s?)", p.Suggestion)
	}
	return s
}

// ValidationError lists every unknown item and location of an utterance.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "errors found: " + strings.Join(parts, ", ")
}

// Is makes errors.Is(err, types.ErrValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == types.ErrValidation }

// ParseError reports text or model output that could not be read as a list
// of (item, location) pairs.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot interpret %q: %s", e.Input, e.Reason)
}

// Is makes errors.Is(err, types.ErrValidation) hold.
func (e *ParseError) Is(target error) bool { return target == types.ErrValidation }

// suggest returns the canonical name of the spelling nearest to token, if it
// is close enough to be a plausible typo.
func suggest(token string, names map[string]string) string {
	spellings := make([]string, 0, len(names))
	for s := range names {
		spellings = append(spellings, s)
	}
	sort.Strings(spellings)

	token = strings.ToLower(token)
	best, bestDist := "", -1
	for _, s := range spellings {
		d := levenshtein.ComputeDistance(token, strings.ToLower(s))
		if bestDist < 0 || d < bestDist {
			best, bestDist = s, d
		}
	}
	if bestDist < 0 || bestDist > maxSuggestDistance(token) {
		return ""
	}
	return names[best]
}

func maxSuggestDistance(token string) int {
	if n := len(token) / 3; n > 2 {
		return n
	}
	return 2
}
