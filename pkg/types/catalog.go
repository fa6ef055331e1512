package types

import (
	"fmt"
	"sort"
	"strings"
)

// ItemID names a graspable object class, e.g. "tuna_fish_can".
type ItemID string

// ItemSpec describes a known item. Tall items are grasped near the top of
// their bounding box instead of the centre.
type ItemSpec struct {
	Tall    bool     `json:"tall" yaml:"tall" mapstructure:"tall"`
	Aliases []string `json:"aliases" yaml:"aliases" mapstructure:"aliases"`
}

// LocationSpec describes a known place location: its world position and the
// phrases that refer to it.
type LocationSpec struct {
	Position [3]float64 `json:"position" yaml:"position" mapstructure:"position"`
	Aliases  []string   `json:"aliases" yaml:"aliases" mapstructure:"aliases"`
}

// Intent is a single (item, location) instruction extracted from user text.
type Intent struct {
	Item     ItemID
	Location LocationID
}

func (i Intent) String() string {
	return fmt.Sprintf("(%s, %s)", i.Item, i.Location)
}

// Catalog is the configured set of known items and locations. Intents are
// only valid if both their item and their location are in the catalog.
type Catalog struct {
	Items     map[ItemID]ItemSpec
	Locations map[LocationID]LocationSpec
}

// HasItem reports whether id is a known item.
func (c Catalog) HasItem(id ItemID) bool {
	_, ok := c.Items[id]
	return ok
}

// HasLocation reports whether id is a known location.
func (c Catalog) HasLocation(id LocationID) bool {
	_, ok := c.Locations[id]
	return ok
}

// IsTall reports whether the item is grasped from the top. Unknown items are
// not tall.
func (c Catalog) IsTall(id ItemID) bool {
	return c.Items[id].Tall
}

// ItemIDs returns the known item names, sorted.
func (c Catalog) ItemIDs() []ItemID {
	ids := make([]ItemID, 0, len(c.Items))
	for id := range c.Items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LocationIDs returns the known location names, sorted.
func (c Catalog) LocationIDs() []LocationID {
	ids := make([]LocationID, 0, len(c.Locations))
	for id := range c.Locations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ResolveItem maps a phrase to an item through the canonical name or any
// alias, case-insensitively.
func (c Catalog) ResolveItem(phrase string) (ItemID, bool) {
	p := normalizePhrase(phrase)
	for id, spec := range c.Items {
		if normalizePhrase(string(id)) == p {
			return id, true
		}
		for _, a := range spec.Aliases {
			if normalizePhrase(a) == p {
				return id, true
			}
		}
	}
	return "", false
}

// ResolveLocation maps a phrase to a location through the canonical name or
// any alias, case-insensitively.
func (c Catalog) ResolveLocation(phrase string) (LocationID, bool) {
	p := normalizePhrase(phrase)
	for id, spec := range c.Locations {
		if normalizePhrase(string(id)) == p {
			return id, true
		}
		for _, a := range spec.Aliases {
			if normalizePhrase(a) == p {
				return id, true
			}
		}
	}
	return "", false
}

// Validate returns an error wrapping ErrValidation if the intent references
// an unknown item or location.
func (c Catalog) Validate(in Intent) error {
	var bad []string
	if !c.HasItem(in.Item) {
		bad = append(bad, fmt.Sprintf("item %q", in.Item))
	}
	if !c.HasLocation(in.Location) {
		bad = append(bad, fmt.Sprintf("location %q", in.Location))
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: unknown %s", ErrValidation, strings.Join(bad, ", "))
	}
	return nil
}

func normalizePhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
