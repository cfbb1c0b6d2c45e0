// Package provider builds type metadata for proxies from Go code.
//
// Three providers are available:
//   - [ReflectionProvider] converts runtime types (reflect.Type values).
//   - [SourceProvider] analyzes Go source with golang.org/x/tools/go/packages.
//   - [ManifestProvider] reads a YAML manifest describing types by hand.
//
// Each returns a [Result] whose types must be registered in a
// [typesys.Universe] before proxies can be built from them.
package provider

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/broady/dynproxy/typesys"
)

// Warning is a non-fatal problem found while building types.
type Warning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	TypeName string `json:"type"`
}

// Result holds the types a provider built, dependencies before the types that
// use them.
type Result struct {
	Types    []*typesys.Type
	Warnings []Warning
}

// AddWarning records a warning.
func (r *Result) AddWarning(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

func (r *Result) add(t *typesys.Type) {
	r.Types = append(r.Types, t)
}

// Register registers every type of r in u.
func (r *Result) Register(u *typesys.Universe) error {
	return u.Register(r.Types...)
}

// Type returns the type named name. name is either the bare type name or the
// full path. When nothing matches, the error suggests the closest name.
func (r *Result) Type(name string) (*typesys.Type, error) {
	for _, t := range r.Types {
		if t.Name == name || t.Path() == name {
			return t, nil
		}
	}
	names := make([]string, len(r.Types))
	for i, t := range r.Types {
		names[i] = t.Name
	}
	return nil, notFound(name, names)
}

// notFound reports a missing type, with a hint when a candidate is close.
func notFound(name string, candidates []string) error {
	if s := closest(name, candidates); s != "" {
		return fmt.Errorf("type %s not found (did you mean %s?)", name, s)
	}
	return fmt.Errorf("type %s not found", name)
}

// closest returns the candidate closest to name, or "" when none is close.
// Subsequence matches are preferred; otherwise the edit distance must be at
// most a third of the name's length.
func closest(name string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	if ranks := fuzzy.RankFindFold(name, candidates); len(ranks) > 0 {
		slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int { return a.Distance - b.Distance })
		return ranks[0].Target
	}

	best, bestDist := "", len(name)/3+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
