package fixes

import (
	"fmt"
	"regexp"
	"strings"
)

// awaitCallRe matches statement-initial action or assertion calls that
// return promises and therefore need an await.
var awaitCallRe = regexp.MustCompile(`^(\s*)(` +
	`page\.(?:goto|click|dblclick|fill|type|press|check|uncheck|hover|tap|focus|selectOption|setInputFiles|reload|goBack|goForward|waitForURL|waitForLoadState|waitForSelector)\s*\(` +
	`|page\.(?:locator|getByRole|getByLabel|getByText|getByTestId|getByPlaceholder|getByTitle|getByAltText)\s*\(.*\)\s*\.\s*(?:click|dblclick|fill|type|press|check|uncheck|hover|tap|focus|selectOption|setInputFiles|waitFor)\s*\(` +
	`|expect\s*\(.+\)\s*\.(?:not\s*\.)?\s*to\w+\s*\(` +
	`)`)

// MissingAwait inserts the await keyword before recognized action or
// assertion calls that lack one. Lines that are comments, already awaited,
// returned, or part of an assignment are left alone.
func MissingAwait(code string, _ Context) Result {
	lines := strings.Split(code, "\n")
	count := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" ||
			strings.HasPrefix(trimmed, "//") ||
			strings.HasPrefix(trimmed, "*") ||
			strings.HasPrefix(trimmed, "await ") ||
			strings.HasPrefix(trimmed, "return ") ||
			strings.Contains(trimmed, "= await ") {
			continue
		}
		// Assignments keep their promise on purpose.
		if eq := strings.Index(trimmed, "="); eq > 0 && !strings.HasPrefix(trimmed, "expect") &&
			!strings.Contains(trimmed[:eq], "(") {
			continue
		}

		m := awaitCallRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lines[i] = m[1] + "await " + line[len(m[1]):]
		count++
	}

	if count == 0 {
		return notApplied(code, "no unawaited action or assertion calls found")
	}
	return Result{
		Applied:     true,
		Code:        strings.Join(lines, "\n"),
		Description: fmt.Sprintf("inserted %d missing await keyword(s)", count),
		Confidence:  0.9,
		FixCount:    count,
	}
}
