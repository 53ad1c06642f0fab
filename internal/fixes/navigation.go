package fixes

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	errURLRe       = regexp.MustCompile(`https?://[^\s"'\)]+|['"](/[^\s"']*)['"]`)
	gotoRe         = regexp.MustCompile(`\.goto\(\s*(['"])((?:\\.|[^'"\\])+)['"]`)
	existingWaitRe = regexp.MustCompile(`waitForURL|waitForLoadState|toHaveURL`)
)

// waitWindow is the number of surrounding lines inspected for an existing
// wait before inserting a new one.
const waitWindow = 3

// NavigationWait inserts an explicit URL-settle assertion after the
// implicated navigation call. The target URL pattern comes from the error
// text when possible, then from a prior goto in the source; with no pattern
// at all a generic load-settle wait is inserted instead.
func NavigationWait(code string, ctx Context) Result {
	lines := strings.Split(code, "\n")

	// The implicated line is the last navigation call in the source.
	navLine := -1
	for i, line := range lines {
		if strings.Contains(line, ".goto(") {
			navLine = i
		}
	}
	if navLine < 0 {
		return notApplied(code, "no navigation call to anchor a wait on")
	}

	if hasNearbyWait(lines, navLine) {
		return notApplied(code, "a navigation wait already exists near the goto call")
	}

	indent := leadingWhitespace(lines[navLine])
	url := urlFromError(ctx.ErrorText)
	if url == "" {
		url = urlFromGoto(lines[navLine])
	}

	var inserted, description string
	confidence := 0.7
	if url != "" {
		inserted = fmt.Sprintf("%sawait page.waitForURL('%s');", indent, url)
		description = fmt.Sprintf("inserted URL wait for %q after navigation", url)
	} else {
		inserted = indent + "await page.waitForLoadState('networkidle');"
		description = "inserted generic load-settle wait after navigation"
		confidence = 0.5
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:navLine+1]...)
	out = append(out, inserted)
	out = append(out, lines[navLine+1:]...)

	return Result{
		Applied:     true,
		Code:        strings.Join(out, "\n"),
		Description: description,
		Confidence:  confidence,
		FixCount:    1,
	}
}

func hasNearbyWait(lines []string, at int) bool {
	lo := at - waitWindow
	if lo < 0 {
		lo = 0
	}
	hi := at + waitWindow
	if hi >= len(lines) {
		hi = len(lines) - 1
	}
	for i := lo; i <= hi; i++ {
		if existingWaitRe.MatchString(lines[i]) {
			return true
		}
	}
	return false
}

func urlFromError(errText string) string {
	m := errURLRe.FindStringSubmatch(errText)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return strings.TrimRight(m[0], ".,;")
}

func urlFromGoto(line string) string {
	if m := gotoRe.FindStringSubmatch(line); m != nil {
		return m[2]
	}
	return ""
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
