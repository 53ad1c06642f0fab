package fixes

import (
	"fmt"
	"regexp"
	"strings"
)

// classRoleTable maps CSS class/attribute tokens to likely ARIA roles.
// Static, checked in order of specificity.
var classRoleTable = []struct {
	token string
	role  string
}{
	{"submit", "button"},
	{"btn", "button"},
	{"button", "button"},
	{"checkbox", "checkbox"},
	{"radio", "radio"},
	{"dropdown", "combobox"},
	{"select", "combobox"},
	{"search", "searchbox"},
	{"input", "textbox"},
	{"field", "textbox"},
	{"textbox", "textbox"},
	{"link", "link"},
	{"anchor", "link"},
	{"nav", "navigation"},
	{"menu", "menu"},
	{"tab", "tab"},
	{"modal", "dialog"},
	{"dialog", "dialog"},
	{"heading", "heading"},
	{"title", "heading"},
}

var (
	errLocatorRe    = regexp.MustCompile(`locator\((['"])((?:\\.|[^'"\\])+)['"]\)`)
	errSelectorRe   = regexp.MustCompile(`waiting for selector ["']([^"']+)["']`)
	ariaLabelAttrRe = regexp.MustCompile(`\[aria-label=["']([^"']+)["']\]`)
	placeholderRe   = regexp.MustCompile(`\[placeholder=["']([^"']+)["']\]`)
	classTokenRe    = regexp.MustCompile(`[.#]([A-Za-z][\w-]*)`)
)

// SelectorRefine replaces every occurrence of a brittle selector with the
// most specific locator available. With caller-supplied structural metadata
// the emitted locator is high confidence; otherwise a role is inferred
// heuristically from class and attribute tokens at lower confidence.
func SelectorRefine(code string, ctx Context) Result {
	selector := ctx.Selector
	if selector == "" {
		selector = selectorFromError(ctx.ErrorText)
	}
	if selector == "" {
		return notApplied(code, "no brittle selector identified")
	}

	locator, confidence := buildLocator(selector, ctx.Aria)
	if locator == "" {
		return notApplied(code, "could not derive a better locator for "+selector)
	}

	count := 0
	out := code
	for _, quote := range []string{"'", `"`} {
		old := "locator(" + quote + selector + quote + ")"
		if n := strings.Count(out, old); n > 0 {
			out = strings.ReplaceAll(out, old, locator)
			count += n
		}
	}
	if count == 0 {
		return notApplied(code, "selector not present in source: "+selector)
	}

	return Result{
		Applied:     true,
		Code:        out,
		Description: fmt.Sprintf("replaced %d occurrence(s) of %q with %s", count, selector, locator),
		Confidence:  confidence,
		FixCount:    count,
	}
}

// selectorFromError extracts the implicated selector from runner error text.
func selectorFromError(errText string) string {
	if m := errLocatorRe.FindStringSubmatch(errText); m != nil {
		return m[2]
	}
	if m := errSelectorRe.FindStringSubmatch(errText); m != nil {
		return m[1]
	}
	return ""
}

// buildLocator emits the most specific locator expression available.
// Priority with metadata: test-id > role+name > label > role-only.
func buildLocator(selector string, aria *AriaInfo) (string, float64) {
	if aria != nil {
		switch {
		case aria.TestID != "":
			return fmt.Sprintf("getByTestId('%s')", aria.TestID), 1.0
		case aria.Role != "" && aria.Name != "":
			return fmt.Sprintf("getByRole('%s', { name: '%s' })", aria.Role, aria.Name), 0.9
		case aria.Label != "":
			return fmt.Sprintf("getByLabel('%s')", aria.Label), 0.85
		case aria.Role != "":
			return fmt.Sprintf("getByRole('%s')", aria.Role), 0.6
		}
	}
	return inferLocator(selector)
}

// inferLocator guesses a role and accessible name from the selector text.
func inferLocator(selector string) (string, float64) {
	lower := strings.ToLower(selector)

	role := ""
	roleToken := ""
	for _, e := range classRoleTable {
		if strings.Contains(lower, e.token) {
			role = e.role
			roleToken = e.token
			break
		}
	}
	if role == "" {
		return "", 0
	}

	// An explicit accessibility attribute is the best name source.
	if m := ariaLabelAttrRe.FindStringSubmatch(selector); m != nil {
		return fmt.Sprintf("getByRole('%s', { name: '%s' })", role, m[1]), 0.6
	}
	if m := placeholderRe.FindStringSubmatch(selector); m != nil {
		return fmt.Sprintf("getByPlaceholder('%s')", m[1]), 0.6
	}

	// Otherwise derive a human-readable name from class tokens.
	if name := nameFromClassTokens(selector, roleToken); name != "" {
		return fmt.Sprintf("getByRole('%s', { name: '%s' })", role, name), 0.5
	}
	return fmt.Sprintf("getByRole('%s')", role), 0.3
}

// nameFromClassTokens turns class tokens like "submit-btn" into "Submit",
// dropping the token that named the role itself.
func nameFromClassTokens(selector, roleToken string) string {
	for _, m := range classTokenRe.FindAllStringSubmatch(selector, -1) {
		var words []string
		for _, part := range strings.FieldsFunc(m[1], func(r rune) bool {
			return r == '-' || r == '_'
		}) {
			lp := strings.ToLower(part)
			if lp == roleToken || isRoleSynonym(lp) {
				continue
			}
			words = append(words, capitalize(lp))
		}
		if len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func isRoleSynonym(token string) bool {
	for _, e := range classRoleTable {
		if e.token == token {
			return true
		}
	}
	return false
}
