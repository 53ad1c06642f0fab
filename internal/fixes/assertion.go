package fixes

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// const text = await page.locator('x').textContent();
	readDeclRe = regexp.MustCompile(
		`^(\s*)(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*await\s+(.+)\.(textContent|innerText|isVisible|isHidden)\(\)\s*;?\s*$`)
	// expect(text).toBe('Hello');
	assertRe = regexp.MustCompile(
		`^\s*expect\(\s*([A-Za-z_$][\w$]*)\s*\)\.(?:toBe|toEqual)\((.*)\)\s*;?\s*$`)
)

// WebFirstAssertion rewrites recognized two-statement "read value then
// assert" idioms into single auto-retrying assertion calls. Four idioms are
// recognized: textContent equality, innerText equality, visible-boolean, and
// hidden-boolean.
func WebFirstAssertion(code string, _ Context) Result {
	lines := strings.Split(code, "\n")
	var out []string
	count := 0

	for i := 0; i < len(lines); i++ {
		if i+1 < len(lines) {
			if rewritten, ok := rewritePair(lines[i], lines[i+1]); ok {
				out = append(out, rewritten)
				count++
				i++ // consume the assertion line
				continue
			}
		}
		out = append(out, lines[i])
	}

	if count == 0 {
		return notApplied(code, "no read-then-assert idioms found")
	}
	return Result{
		Applied:     true,
		Code:        strings.Join(out, "\n"),
		Description: fmt.Sprintf("rewrote %d read-then-assert idiom(s) into web-first assertions", count),
		Confidence:  0.85,
		FixCount:    count,
	}
}

// rewritePair collapses a declaration line and its following assertion into
// one web-first assertion, when the variable names agree.
func rewritePair(decl, assert string) (string, bool) {
	dm := readDeclRe.FindStringSubmatch(decl)
	if dm == nil {
		return "", false
	}
	am := assertRe.FindStringSubmatch(assert)
	if am == nil || am[1] != dm[2] {
		return "", false
	}

	indent, receiver, method := dm[1], dm[3], dm[4]
	arg := strings.TrimSpace(am[2])

	switch method {
	case "textContent", "innerText":
		return fmt.Sprintf("%sawait expect(%s).toHaveText(%s);", indent, receiver, arg), true
	case "isVisible":
		switch arg {
		case "true":
			return fmt.Sprintf("%sawait expect(%s).toBeVisible();", indent, receiver), true
		case "false":
			return fmt.Sprintf("%sawait expect(%s).toBeHidden();", indent, receiver), true
		}
	case "isHidden":
		switch arg {
		case "true":
			return fmt.Sprintf("%sawait expect(%s).toBeHidden();", indent, receiver), true
		case "false":
			return fmt.Sprintf("%sawait expect(%s).toBeVisible();", indent, receiver), true
		}
	}
	return "", false
}
