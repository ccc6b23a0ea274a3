// Package warehouse classifies warehouse names into availability categories
// and expands group warehouses into their children.
package warehouse

import (
	"fmt"
	"strings"
)

// Category describes how stock in a warehouse may be used for fulfillment.
type Category string

const (
	// Sellable stock counts as available now.
	Sellable Category = "SELLABLE"
	// NeedsProcessing stock is usable but requires an extra processing day.
	NeedsProcessing Category = "NEEDS_PROCESSING"
	// InTransit stock is not available now; it becomes supply via receipt ETA.
	InTransit Category = "IN_TRANSIT"
	// NotAvailable stock cannot satisfy demand (WIP, rejected, scrap).
	NotAvailable Category = "NOT_AVAILABLE"
	// Group warehouses are logical containers and must be expanded.
	Group Category = "GROUP"
)

// PatternRule maps any name containing one of its substrings to a category.
type PatternRule struct {
	Substrings []string
	Category   Category
}

// Ruleset holds the classification table, fallback pattern rules and the
// group hierarchy. It is built once at startup and is read-only afterwards.
type Ruleset struct {
	exact     map[string]Category
	patterns  []PatternRule
	hierarchy map[string][]string
}

func NewRuleset(exact map[string]Category, patterns []PatternRule, hierarchy map[string][]string) *Ruleset {
	rs := &Ruleset{
		exact:     make(map[string]Category, len(exact)),
		patterns:  patterns,
		hierarchy: make(map[string][]string, len(hierarchy)),
	}
	for name, cat := range exact {
		rs.exact[normalize(name)] = cat
	}
	for name, children := range hierarchy {
		rs.hierarchy[normalize(name)] = children
	}
	return rs
}

// DefaultRuleset mirrors the stock ERPNext warehouse layout.
func DefaultRuleset() *Ruleset {
	exact := map[string]Category{
		"stores - sd":    Sellable,
		"stores - wh":    Sellable,
		"main warehouse": Sellable,
		"warehouse":      Sellable,

		"finished goods - sd": NeedsProcessing,
		"finished goods - wh": NeedsProcessing,
		"finished goods":      NeedsProcessing,

		"goods in transit - sd": InTransit,
		"goods in transit - wh": InTransit,
		"goods in transit":      InTransit,
		"in transit":            InTransit,

		"work in progress - sd": NotAvailable,
		"work in progress - wh": NotAvailable,
		"work in progress":      NotAvailable,
		"wip":                   NotAvailable,
		"rejected - sd":         NotAvailable,
		"rejected - wh":         NotAvailable,
		"scrap":                 NotAvailable,

		"all warehouses - sd": Group,
		"all warehouses - wh": Group,
		"all warehouses":      Group,
	}

	// Evaluated in order, first match wins.
	patterns := []PatternRule{
		{Substrings: []string{"transit"}, Category: InTransit},
		{Substrings: []string{"wip", "work in progress", "scrap", "reject"}, Category: NotAvailable},
		{Substrings: []string{"finished"}, Category: NeedsProcessing},
		{Substrings: []string{"all", "group"}, Category: Group},
	}

	hierarchy := map[string][]string{
		"all warehouses - sd": {
			"Stores - SD",
			"Finished Goods - SD",
			"Goods In Transit - SD",
			"Work In Progress - SD",
		},
		"all warehouses - wh": {
			"Stores - WH",
			"Finished Goods - WH",
			"Goods In Transit - WH",
			"Work In Progress - WH",
		},
	}

	return NewRuleset(exact, patterns, hierarchy)
}

// Classify resolves a warehouse name to a category: exact match first, then
// the pattern rules in order, then Sellable as the conservative default.
func (rs *Ruleset) Classify(name string) Category {
	if name == "" {
		return Sellable
	}
	normalized := normalize(name)
	if cat, ok := rs.exact[normalized]; ok {
		return cat
	}
	for _, rule := range rs.patterns {
		for _, sub := range rule.Substrings {
			if strings.Contains(normalized, sub) {
				return rule.Category
			}
		}
	}
	return Sellable
}

func (rs *Ruleset) IsGroup(name string) bool {
	return rs.Classify(name) == Group
}

// Children returns the configured children of a group warehouse, or nil when
// the name is not a known group.
func (rs *Ruleset) Children(name string) []string {
	return rs.hierarchy[normalize(name)]
}

// Expand replaces group warehouses with their children, deduplicating
// case-insensitively while preserving first-seen order. Non-group names pass
// through; a group with no configured children is dropped.
func (rs *Ruleset) Expand(names []string) []string {
	var expanded []string
	for _, name := range names {
		if rs.IsGroup(name) {
			expanded = append(expanded, rs.Children(name)...)
			continue
		}
		expanded = append(expanded, name)
	}

	seen := make(map[string]struct{}, len(expanded))
	result := make([]string, 0, len(expanded))
	for _, name := range expanded {
		key := normalize(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, name)
	}
	return result
}

// AvailabilityNote renders a human-readable explanation of why stock in the
// named warehouse is or is not usable.
func (rs *Ruleset) AvailabilityNote(name string, qty float64) string {
	switch rs.Classify(name) {
	case Sellable:
		return fmt.Sprintf("%g units available in %s (ready to ship)", qty, name)
	case NeedsProcessing:
		return fmt.Sprintf("%g units in %s (requires processing before shipping)", qty, name)
	case InTransit:
		return fmt.Sprintf("%g units in %s (not ship-ready; awaiting receipt)", qty, name)
	case NotAvailable:
		return fmt.Sprintf("%g units in %s (not available for fulfillment)", qty, name)
	case Group:
		return fmt.Sprintf("%s is a group warehouse (must expand to children)", name)
	}
	return fmt.Sprintf("%g units in %s", qty, name)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
