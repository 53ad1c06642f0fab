package classify

import "journeyheal/internal/report"

// ClassifyTestResult classifies each of a failing test's recorded errors
// independently and returns the single classification with the highest
// confidence. Ties keep the first evaluated error.
func ClassifyTestResult(t report.TestResult) Classification {
	if len(t.Errors) == 0 {
		return Classify("")
	}

	best := Classification{Category: CategoryUnknown}
	bestConf := -1.0
	for _, e := range t.Errors {
		c := Classify(e.Message + "\n" + e.Stack)
		if c.Confidence > bestConf {
			bestConf = c.Confidence
			best = c
		}
	}
	return best
}

// ClassifyAll classifies every failed test in a flattened run, keyed by the
// test's full title path.
func ClassifyAll(results []report.TestResult) map[string]Classification {
	out := make(map[string]Classification)
	for _, t := range results {
		if t.Status == "passed" || t.Status == "skipped" {
			continue
		}
		out[t.Key()] = ClassifyTestResult(t)
	}
	return out
}
