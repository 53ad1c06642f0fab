// Package fixes implements the independent, idempotent text-transformation
// strategies the healing loop applies to test source. Every strategy honors
// a strict no-op contract: when nothing matched, Applied is false and Code
// is byte-identical to the input.
package fixes

import (
	"time"

	"journeyheal/internal/rules"
)

// AriaInfo is optional structural element metadata supplied by the caller,
// letting selector-refine emit the most specific available locator.
type AriaInfo struct {
	Role   string `json:"role,omitempty"`
	Name   string `json:"name,omitempty"`
	Label  string `json:"label,omitempty"`
	TestID string `json:"test_id,omitempty"`
}

// Context carries the failure evidence a strategy may consult. All fields
// are optional; strategies degrade to text heuristics when they are absent.
type Context struct {
	ErrorText  string        // raw error output of the implicated test
	Selector   string        // brittle selector, when already known
	Aria       *AriaInfo     // structural hints for the implicated element
	MaxTimeout time.Duration // cap for timeout-increase
}

// Result is the outcome of applying one strategy.
type Result struct {
	Applied     bool    `json:"applied"`
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	FixCount    int     `json:"fix_count"`
}

func notApplied(code, why string) Result {
	return Result{Applied: false, Code: code, Description: why}
}

// Apply dispatches to the strategy for fixType. Unknown fix types are
// no-ops. The no-op contract is enforced here for every strategy.
func Apply(fixType rules.FixType, code string, ctx Context) Result {
	var res Result
	switch fixType {
	case rules.FixMissingAwait:
		res = MissingAwait(code, ctx)
	case rules.FixSelectorRefine:
		res = SelectorRefine(code, ctx)
	case rules.FixAddExact:
		res = AddExact(code, ctx)
	case rules.FixNavigationWait:
		res = NavigationWait(code, ctx)
	case rules.FixWebFirstAssertion:
		res = WebFirstAssertion(code, ctx)
	case rules.FixTimeoutIncrease:
		res = TimeoutIncrease(code, ctx)
	default:
		res = notApplied(code, "unknown fix type")
	}
	if !res.Applied {
		res.Code = code
	}
	return res
}
