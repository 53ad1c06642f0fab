// Package classify maps raw test-failure output to a fixed failure taxonomy.
// Classification is purely lexical: each category carries an ordered set of
// keyword patterns, and the category with the strict maximum number of
// matching patterns wins. Definition order encodes domain priority, so
// selector signals are checked before generic data-assertion signals.
package classify

import "strings"

// Category is the likely root cause of a test failure.
type Category string

const (
	CategorySelector   Category = "selector"
	CategoryTiming     Category = "timing"
	CategoryNavigation Category = "navigation"
	CategoryData       Category = "data"
	CategoryAuth       Category = "auth"
	CategoryEnv        Category = "env"
	CategoryScript     Category = "script"
	CategoryUnknown    Category = "unknown"
)

// Classification is the outcome of classifying one failure text.
type Classification struct {
	Category        Category `json:"category"`
	Confidence      float64  `json:"confidence"`
	Explanation     string   `json:"explanation"`
	Suggestion      string   `json:"suggestion"`
	IsTestIssue     bool     `json:"is_test_issue"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// categoryDef binds a category to its keyword patterns. The patterns are
// matched as lowercase substrings against message + stack.
type categoryDef struct {
	category    Category
	patterns    []string
	explanation string
	suggestion  string
	isTestIssue bool
}

// categoryDefs is ordered by domain priority and is never mutated at runtime.
var categoryDefs = []categoryDef{
	{
		category: CategorySelector,
		patterns: []string{
			"strict mode violation",
			"resolved to",
			"element not found",
			"no element matches",
			"element is not attached",
			"element is detached",
			"element is not visible",
			"failed to find element",
			"selector did not match",
			"intercepts pointer events",
		},
		explanation: "The locator did not resolve to the intended element.",
		suggestion:  "Replace the brittle selector with a role, label, or test-id locator.",
		isTestIssue: true,
	},
	{
		category: CategoryTiming,
		patterns: []string{
			"timeout",
			"timed out",
			"exceeded",
			"waiting for",
			"deadline",
			"did not settle",
		},
		explanation: "The action or assertion did not complete within its time budget.",
		suggestion:  "Add missing awaits or use auto-retrying web-first assertions.",
		isTestIssue: true,
	},
	{
		category: CategoryNavigation,
		patterns: []string{
			"navigation",
			"net::err_aborted",
			"expected to have url",
			"tohaveurl",
			"interrupted by another navigation",
			"frame was detached",
		},
		explanation: "The page did not reach the expected URL or the navigation was interrupted.",
		suggestion:  "Insert an explicit wait for the target URL after the navigation.",
		isTestIssue: true,
	},
	{
		category: CategoryData,
		patterns: []string{
			"expect(",
			"expected",
			"received",
			"tohavetext",
			"tobe(",
			"toequal",
			"assertion failed",
			"deep equality",
		},
		explanation: "An assertion compared against data that did not match.",
		suggestion:  "Check whether the expected values match the application's test data.",
		isTestIssue: true,
	},
	{
		category: CategoryAuth,
		patterns: []string{
			"401",
			"unauthorized",
			"403",
			"forbidden",
			"login",
			"authentication",
			"session expired",
			"invalid credentials",
			"csrf",
		},
		explanation: "The test was rejected by an authentication or authorization layer.",
		suggestion:  "Verify test credentials and session setup outside the test source.",
		isTestIssue: false,
	},
	{
		category: CategoryEnv,
		patterns: []string{
			"econnrefused",
			"econnreset",
			"enotfound",
			"net::err_connection",
			"net::err_name_not_resolved",
			"net::err_internet_disconnected",
			"browser has been closed",
			"target closed",
			"executable doesn't exist",
			"playwright install",
			"out of memory",
			"address already in use",
			"missing dependencies",
		},
		explanation: "The execution environment failed, not the test logic.",
		suggestion:  "Fix the environment: service availability, browser install, resources.",
		isTestIssue: false,
	},
	{
		category: CategoryScript,
		patterns: []string{
			"syntaxerror",
			"referenceerror",
			"typeerror",
			"cannot read propert",
			"undefined is not",
			"is not a function",
			"unexpected token",
		},
		explanation: "The test script itself raised a language-level error.",
		suggestion:  "Fix the script error before attempting behavioral repairs.",
		isTestIssue: true,
	},
}

// maxConfidenceMatches is the pattern count at which confidence saturates.
const maxConfidenceMatches = 3

// Classify maps raw error text to a Classification. Zero matches across all
// categories yields CategoryUnknown with confidence 0.
func Classify(errorText string) Classification {
	lower := strings.ToLower(errorText)

	best := Classification{
		Category:    CategoryUnknown,
		Confidence:  0,
		Explanation: "No known failure signature matched.",
		Suggestion:  "Inspect the raw error output manually.",
		IsTestIssue: false,
	}
	bestCount := 0

	for _, def := range categoryDefs {
		var matched []string
		for _, p := range def.patterns {
			if strings.Contains(lower, p) {
				matched = append(matched, p)
			}
		}
		// Strict maximum: ties keep the earliest-defined category.
		if len(matched) > bestCount {
			bestCount = len(matched)
			best = Classification{
				Category:        def.category,
				Confidence:      confidence(len(matched)),
				Explanation:     def.explanation,
				Suggestion:      def.suggestion,
				IsTestIssue:     def.isTestIssue,
				MatchedKeywords: matched,
			}
		}
	}

	return best
}

func confidence(matches int) float64 {
	c := float64(matches) / float64(maxConfidenceMatches)
	if c > 1 {
		return 1
	}
	return c
}

// Unhealable reports whether a category requires human, credential, or
// environment intervention rather than code mutation.
func Unhealable(c Category) bool {
	switch c {
	case CategoryAuth, CategoryEnv, CategoryUnknown:
		return true
	}
	return false
}
