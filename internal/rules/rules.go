// Package rules decides whether a classified failure may be healed and in
// which order candidate fixes are tried. The rule catalog is a static,
// ordered list of data records; evaluation is purely functional and never
// mutates the catalog.
package rules

import (
	"fmt"
	"sort"

	"journeyheal/internal/classify"
	"journeyheal/internal/config"
)

// FixType identifies one source-text repair strategy.
type FixType string

const (
	FixMissingAwait      FixType = "missing-await"
	FixSelectorRefine    FixType = "selector-refine"
	FixAddExact          FixType = "add-exact"
	FixNavigationWait    FixType = "navigation-wait"
	FixWebFirstAssertion FixType = "web-first-assertion"
	FixTimeoutIncrease   FixType = "timeout-increase"
)

// Rule binds a fix type to the failure categories it can address. Lower
// priority is tried first.
type Rule struct {
	FixType          FixType
	AppliesTo        []classify.Category
	Priority         int
	Description      string
	EnabledByDefault bool
}

// catalog is ordered and immutable. Callers get copies via Catalog.
var catalog = []Rule{
	{
		FixType:          FixSelectorRefine,
		AppliesTo:        []classify.Category{classify.CategorySelector},
		Priority:         1,
		Description:      "Replace brittle CSS selectors with role/label/test-id locators",
		EnabledByDefault: true,
	},
	{
		FixType:          FixAddExact,
		AppliesTo:        []classify.Category{classify.CategorySelector, classify.CategoryData},
		Priority:         2,
		Description:      "Add exact-match options to ambiguous text and label locators",
		EnabledByDefault: true,
	},
	{
		FixType:          FixMissingAwait,
		AppliesTo:        []classify.Category{classify.CategoryTiming, classify.CategoryScript},
		Priority:         1,
		Description:      "Insert missing await keywords on action and assertion calls",
		EnabledByDefault: true,
	},
	{
		FixType:          FixWebFirstAssertion,
		AppliesTo:        []classify.Category{classify.CategoryTiming, classify.CategoryData},
		Priority:         2,
		Description:      "Rewrite read-then-assert idioms into auto-retrying assertions",
		EnabledByDefault: true,
	},
	{
		FixType:          FixTimeoutIncrease,
		AppliesTo:        []classify.Category{classify.CategoryTiming},
		Priority:         3,
		Description:      "Raise the explicit timeout on the implicated action",
		EnabledByDefault: false,
	},
	{
		FixType:          FixNavigationWait,
		AppliesTo:        []classify.Category{classify.CategoryNavigation},
		Priority:         1,
		Description:      "Insert an explicit URL-settle wait after the navigation",
		EnabledByDefault: true,
	},
}

// Catalog returns a copy of the static rule catalog in definition order.
func Catalog() []Rule {
	out := make([]Rule, len(catalog))
	copy(out, catalog)
	return out
}

// Decision is the outcome of evaluating healability.
type Decision struct {
	CanHeal         bool      `json:"can_heal"`
	ApplicableFixes []FixType `json:"applicable_fixes,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}

// ApplicableRules filters the catalog to rules that address the category and
// survive the allowed/forbidden fix sets, sorted ascending by priority.
func ApplicableRules(category classify.Category, cfg config.Healing) []Rule {
	forbidden := make(map[string]bool, len(cfg.ForbiddenFixes))
	for _, f := range cfg.ForbiddenFixes {
		forbidden[f] = true
	}
	allowed := make(map[string]bool, len(cfg.AllowedFixes))
	for _, f := range cfg.AllowedFixes {
		allowed[f] = true
	}

	var out []Rule
	for _, r := range catalog {
		if !appliesTo(r, category) {
			continue
		}
		// Forbidden always wins, even when misconfigured into allowed.
		if forbidden[string(r.FixType)] {
			continue
		}
		if !allowed[string(r.FixType)] {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func appliesTo(r Rule, category classify.Category) bool {
	for _, c := range r.AppliesTo {
		if c == category {
			return true
		}
	}
	return false
}

// Evaluate decides whether healing is permitted for the classification under
// the supplied configuration.
func Evaluate(c classify.Classification, cfg config.Healing) Decision {
	if !cfg.Enabled {
		return Decision{Reason: "healing is disabled by configuration"}
	}
	if classify.Unhealable(c.Category) {
		return Decision{Reason: fmt.Sprintf(
			"category %q requires human, credential, or environment intervention", c.Category)}
	}

	rules := ApplicableRules(c.Category, cfg)
	if len(rules) == 0 {
		return Decision{Reason: "no applicable healing rules"}
	}

	fixes := make([]FixType, len(rules))
	for i, r := range rules {
		fixes[i] = r.FixType
	}
	return Decision{CanHeal: true, ApplicableFixes: fixes}
}

// NextFix returns the first candidate fix, in priority order, that has not
// already been attempted this session. ok is false when candidates are
// exhausted.
func NextFix(c classify.Classification, attempted []FixType, cfg config.Healing) (FixType, bool) {
	tried := make(map[FixType]bool, len(attempted))
	for _, f := range attempted {
		tried[f] = true
	}
	for _, r := range ApplicableRules(c.Category, cfg) {
		if !tried[r.FixType] {
			return r.FixType, true
		}
	}
	return "", false
}
