package fixes

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const defaultActionTimeoutMs = 5000

var (
	timeoutOptionRe = regexp.MustCompile(`timeout:\s*(\d+)`)
	errTimeoutRe    = regexp.MustCompile(`[Tt]imeout (\d+)ms`)
	emptyActionRe   = regexp.MustCompile(
		`\.(click|dblclick|fill|press|check|uncheck|hover|tap|waitFor)\(\s*\)`)
)

// TimeoutIncrease raises the explicit timeout on the implicated action, but
// only as a last resort: a missing await or a non-retrying assertion is the
// more likely root cause of a timing failure, so those strategies run first.
func TimeoutIncrease(code string, ctx Context) Result {
	if res := MissingAwait(code, ctx); res.Applied {
		return res
	}
	if res := WebFirstAssertion(code, ctx); res.Applied {
		return res
	}

	current := currentTimeoutMs(code, ctx.ErrorText)
	raised := current * 3 / 2
	capMs := int(ctx.MaxTimeout / time.Millisecond)
	if capMs <= 0 {
		capMs = 30000
	}
	if raised > capMs {
		raised = capMs
	}
	if raised <= current {
		return notApplied(code, fmt.Sprintf("timeout already at the %dms cap", capMs))
	}

	// Prefer raising an existing explicit timeout option.
	if loc := timeoutOptionRe.FindStringIndex(code); loc != nil {
		out := code[:loc[0]] + fmt.Sprintf("timeout: %d", raised) + code[loc[1]:]
		return Result{
			Applied:     true,
			Code:        out,
			Description: fmt.Sprintf("raised explicit timeout from %dms to %dms", current, raised),
			Confidence:  0.6,
			FixCount:    1,
		}
	}

	// Otherwise add one to the first argument-less action call.
	if loc := emptyActionRe.FindStringSubmatchIndex(code); loc != nil {
		m := emptyActionRe.FindStringSubmatch(code)
		out := code[:loc[0]] + fmt.Sprintf(".%s({ timeout: %d })", m[1], raised) + code[loc[1]:]
		return Result{
			Applied:     true,
			Code:        out,
			Description: fmt.Sprintf("added explicit %dms timeout to %s action", raised, m[1]),
			Confidence:  0.5,
			FixCount:    1,
		}
	}

	return notApplied(code, "no action found to carry an explicit timeout")
}

// currentTimeoutMs finds the timeout in effect: an explicit option in the
// source, the value reported in the error text, or the runner default.
func currentTimeoutMs(code, errText string) int {
	if m := timeoutOptionRe.FindStringSubmatch(code); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v
		}
	}
	if m := errTimeoutRe.FindStringSubmatch(errText); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v
		}
	}
	return defaultActionTimeoutMs
}
