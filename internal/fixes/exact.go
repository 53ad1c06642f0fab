package fixes

import (
	"fmt"
	"regexp"
)

var (
	// getByLabel('Email') and friends with a single string argument.
	textLocatorRe = regexp.MustCompile(
		`(getBy(?:Label|Text|Title|Placeholder|AltText))\(\s*(['"])((?:\\.|[^'"\\])*)(['"])\s*\)`)
	// getByRole('button', { name: 'Save' }) without an exact option.
	roleNameRe = regexp.MustCompile(
		`(getByRole\(\s*['"][\w-]+['"]\s*,\s*\{\s*name:\s*(?:'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"))\s*\}`)
)

// AddExact rewrites existing role, label, and text locator calls to request
// exact matching, tightening locators that over-match.
func AddExact(code string, _ Context) Result {
	count := 0

	out := textLocatorRe.ReplaceAllStringFunc(code, func(m string) string {
		count++
		sub := textLocatorRe.FindStringSubmatch(m)
		return fmt.Sprintf("%s(%s%s%s, { exact: true })", sub[1], sub[2], sub[3], sub[4])
	})

	out = roleNameRe.ReplaceAllStringFunc(out, func(m string) string {
		count++
		sub := roleNameRe.FindStringSubmatch(m)
		return sub[1] + ", exact: true }"
	})

	if count == 0 {
		return notApplied(code, "no text, label, or role locators to tighten")
	}
	return Result{
		Applied:     true,
		Code:        out,
		Description: fmt.Sprintf("added exact matching to %d locator call(s)", count),
		Confidence:  0.8,
		FixCount:    count,
	}
}
