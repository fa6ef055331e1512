// Package nlp extracts ordered (item, location) intents from free text.
//
// Two extractors share one validation step: RuleExtractor reads the fixed
// command grammar of the scene with the catalog's alias tables, and
// GenAIExtractor asks a Gemini model for a list of tuples. Unknown names are
// reported, never guessed.
package nlp

import (
	"context"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// Extractor turns one utterance into intents in the order they were given.
// Errors satisfy errors.Is(err, types.ErrValidation).
type Extractor interface {
	Extract(ctx context.Context, text string) ([]types.Intent, error)
}

// pair is an (item, location) reading before validation.
type pair struct {
	item     string
	location string
}

// resolver maps a raw token to a catalog name.
type resolver struct {
	item     func(string) (types.ItemID, bool)
	location func(string) (types.LocationID, bool)
	// Known spellings mapped to their canonical names, for hints.
	items     map[string]string
	locations map[string]string
}

// canonicalResolver accepts only canonical names.
func canonicalResolver(c types.Catalog) resolver {
	r := resolver{
		item: func(s string) (types.ItemID, bool) {
			id := types.ItemID(s)
			return id, c.HasItem(id)
		},
		location: func(s string) (types.LocationID, bool) {
			id := types.LocationID(s)
			return id, c.HasLocation(id)
		},
		items:     map[string]string{},
		locations: map[string]string{},
	}
	for id := range c.Items {
		r.items[string(id)] = string(id)
	}
	for id := range c.Locations {
		r.locations[string(id)] = string(id)
	}
	return r
}

// aliasResolver accepts canonical names and aliases.
func aliasResolver(c types.Catalog) resolver {
	r := canonicalResolver(c)
	r.item = c.ResolveItem
	r.location = c.ResolveLocation
	for id, spec := range c.Items {
		for _, a := range spec.Aliases {
			r.items[a] = string(id)
		}
	}
	for id, spec := range c.Locations {
		for _, a := range spec.Aliases {
			r.locations[a] = string(id)
		}
	}
	return r
}

// validate resolves every pair and collects every unknown token. Either all
// intents are returned or none.
func validate(pairs []pair, r resolver) ([]types.Intent, error) {
	var (
		intents  = make([]types.Intent, 0, len(pairs))
		problems []Problem
	)
	for _, p := range pairs {
		item, okItem := r.item(p.item)
		if !okItem {
			problems = append(problems, Problem{Kind: "item", Token: p.item, Suggestion: suggest(p.item, r.items)})
		}
		loc, okLoc := r.location(p.location)
		if !okLoc {
			problems = append(problems, Problem{Kind: "location", Token: p.location, Suggestion: suggest(p.location, r.locations)})
		}
		if okItem && okLoc {
			intents = append(intents, types.Intent{Item: item, Location: loc})
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return intents, nil
}
