// Package matcher resolves free-text statement descriptions to known payee
// entities through a layered, deterministic heuristic. It is pure and
// side-effect free; rows it cannot resolve fall back to the AI categorizer.
package matcher

import (
	"sort"
	"strings"

	"github.com/bankfeed-dev/bankfeed/internal/domain"
)

// DefaultMinContainsLen guards the contains stage against short entity names
// producing false positives. Heuristic, not principled; keep it tunable.
const DefaultMinContainsLen = 4

// Matcher resolves descriptions against an entity lookup and alias table.
type Matcher struct {
	minContainsLen int
}

// New creates a Matcher. minContainsLen <= 0 selects DefaultMinContainsLen.
func New(minContainsLen int) *Matcher {
	if minContainsLen <= 0 {
		minContainsLen = DefaultMinContainsLen
	}
	return &Matcher{minContainsLen: minContainsLen}
}

// Match runs the staged resolution, first hit wins:
//
//  1. alias: an alias key appearing as a substring of the description maps to
//     a canonical entity name; if that name is unknown the stage yields
//     nothing and matching continues with the original description
//  2. exact name match
//  3. prefix match, longest entity name wins
//  4. contains match (names of at least minContainsLen), longest wins
//  5. stages 2-4 re-run with apostrophes/backticks stripped from both sides
//
// All comparisons are case-insensitive. Equal-length candidates and multiple
// matching aliases resolve in a fixed order, so identical inputs always
// return the same entity. Returns nil when nothing matched.
func (m *Matcher) Match(description string, entities map[string]domain.EntityRef, aliases map[string]string) *domain.EntityMatch {
	norm := strings.ToUpper(strings.TrimSpace(description))
	if norm == "" || len(entities) == 0 {
		return nil
	}

	if hit := matchAlias(norm, entities, aliases); hit != nil {
		return hit
	}

	if hit := m.matchStages(norm, entities, nil); hit != nil {
		return hit
	}

	// Punctuation-stripped retry; strips both sides so an apostrophe on
	// either the description or the entity name no longer blocks a match.
	if hit := m.matchStages(stripPunctuation(norm), entities, stripPunctuation); hit != nil {
		return hit
	}

	return nil
}

func matchAlias(norm string, entities map[string]domain.EntityRef, aliases map[string]string) *domain.EntityMatch {
	// Sorted iteration: when several alias keys appear in the description,
	// the same one must win on every call.
	keys := make([]string, 0, len(aliases))
	for key := range aliases {
		if key != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !strings.Contains(norm, strings.ToUpper(key)) {
			continue
		}
		if ref, ok := lookupName(entities, aliases[key]); ok {
			return found(ref, domain.MatchAlias)
		}
		// Unknown canonical name: the alias is not itself an entity-name
		// synonym, so fall through with the original description.
	}
	return nil
}

// matchStages runs exact, prefix and contains against entity names, applying
// transform (may be nil) to each name before comparison.
func (m *Matcher) matchStages(desc string, entities map[string]domain.EntityRef, transform func(string) string) *domain.EntityMatch {
	type candidate struct {
		ref  domain.EntityRef
		name string
	}
	var prefixBest, containsBest *candidate

	for name, ref := range entities {
		cmp := strings.ToUpper(strings.TrimSpace(name))
		if transform != nil {
			cmp = transform(cmp)
		}
		if cmp == "" {
			continue
		}
		if desc == cmp {
			return found(ref, domain.MatchExact)
		}
		if strings.HasPrefix(desc, cmp) {
			if prefixBest == nil || betterCandidate(cmp, prefixBest.name) {
				prefixBest = &candidate{ref: ref, name: cmp}
			}
		}
		if len(cmp) >= m.minContainsLen && strings.Contains(desc, cmp) {
			if containsBest == nil || betterCandidate(cmp, containsBest.name) {
				containsBest = &candidate{ref: ref, name: cmp}
			}
		}
	}

	if prefixBest != nil {
		return found(prefixBest.ref, domain.MatchPrefix)
	}
	if containsBest != nil {
		return found(containsBest.ref, domain.MatchContains)
	}
	return nil
}

// betterCandidate reports whether name beats best: longer wins, equal lengths
// break toward the lexicographically smaller name. Entity maps iterate in
// random order, so ties need a total order to stay reproducible.
func betterCandidate(name, best string) bool {
	if len(name) != len(best) {
		return len(name) > len(best)
	}
	return name < best
}

func lookupName(entities map[string]domain.EntityRef, name string) (domain.EntityRef, bool) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for candidate, ref := range entities {
		if strings.ToUpper(strings.TrimSpace(candidate)) == want {
			return ref, true
		}
	}
	return domain.EntityRef{}, false
}

func found(ref domain.EntityRef, mt domain.MatchType) *domain.EntityMatch {
	return &domain.EntityMatch{
		EntityID:   ref.ID,
		EntityName: ref.Name,
		EntityURL:  ref.URL,
		MatchType:  mt,
		Confidence: 1.0,
	}
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', '`', '’':
			return -1
		}
		return r
	}, s)
}
