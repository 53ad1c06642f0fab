package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journeyheal/internal/classify"
	"journeyheal/internal/config"
)

func defaultHealing() config.Healing {
	return config.DefaultConfig().Healing
}

func TestEvaluateDisabled(t *testing.T) {
	cfg := defaultHealing()
	cfg.Enabled = false

	d := Evaluate(classify.Classification{Category: classify.CategoryTiming}, cfg)
	assert.False(t, d.CanHeal)
	assert.Equal(t, "healing is disabled by configuration", d.Reason)
	assert.Empty(t, d.ApplicableFixes)
}

func TestEvaluateUnhealableCategories(t *testing.T) {
	for _, cat := range []classify.Category{classify.CategoryAuth, classify.CategoryEnv, classify.CategoryUnknown} {
		d := Evaluate(classify.Classification{Category: cat}, defaultHealing())
		assert.False(t, d.CanHeal, "category %s", cat)
		assert.Contains(t, d.Reason, "requires human, credential, or environment intervention")
	}
}

func TestEvaluateTimingOrder(t *testing.T) {
	// Timing with defaults: missing-await (p1) before web-first-assertion (p2);
	// timeout-increase is excluded because defaults do not allow it.
	d := Evaluate(classify.Classification{Category: classify.CategoryTiming}, defaultHealing())
	require.True(t, d.CanHeal)
	assert.Equal(t, []FixType{FixMissingAwait, FixWebFirstAssertion}, d.ApplicableFixes)
}

func TestEvaluateSelectorOrder(t *testing.T) {
	d := Evaluate(classify.Classification{Category: classify.CategorySelector}, defaultHealing())
	require.True(t, d.CanHeal)
	assert.Equal(t, []FixType{FixSelectorRefine, FixAddExact}, d.ApplicableFixes)
}

func TestEvaluateNoApplicableRules(t *testing.T) {
	cfg := defaultHealing()
	cfg.AllowedFixes = nil

	d := Evaluate(classify.Classification{Category: classify.CategoryTiming}, cfg)
	assert.False(t, d.CanHeal)
	assert.Equal(t, "no applicable healing rules", d.Reason)
}

func TestForbiddenOverridesAllowed(t *testing.T) {
	cfg := defaultHealing()
	cfg.AllowedFixes = []string{"missing-await", "web-first-assertion"}
	cfg.ForbiddenFixes = []string{"missing-await"}

	d := Evaluate(classify.Classification{Category: classify.CategoryTiming}, cfg)
	require.True(t, d.CanHeal)
	assert.Equal(t, []FixType{FixWebFirstAssertion}, d.ApplicableFixes)
}

func TestTimeoutIncreaseIsOptIn(t *testing.T) {
	cfg := defaultHealing()
	cfg.AllowedFixes = append(cfg.AllowedFixes, "timeout-increase")

	d := Evaluate(classify.Classification{Category: classify.CategoryTiming}, cfg)
	require.True(t, d.CanHeal)
	// Priority 3 places it after the default timing candidates.
	assert.Equal(t, []FixType{FixMissingAwait, FixWebFirstAssertion, FixTimeoutIncrease}, d.ApplicableFixes)
}

func TestNextFixNeverRepeats(t *testing.T) {
	cfg := defaultHealing()
	cls := classify.Classification{Category: classify.CategoryTiming}

	var attempted []FixType
	for {
		fix, ok := NextFix(cls, attempted, cfg)
		if !ok {
			break
		}
		assert.NotContains(t, attempted, fix)
		attempted = append(attempted, fix)
		require.LessOrEqual(t, len(attempted), len(catalog), "NextFix must terminate")
	}
	assert.Equal(t, []FixType{FixMissingAwait, FixWebFirstAssertion}, attempted)
}

func TestNextFixExhausted(t *testing.T) {
	cls := classify.Classification{Category: classify.CategoryNavigation}
	_, ok := NextFix(cls, []FixType{FixNavigationWait}, defaultHealing())
	assert.False(t, ok)
}

func TestCatalogIsACopy(t *testing.T) {
	a := Catalog()
	a[0].FixType = "mutated"
	b := Catalog()
	assert.NotEqual(t, a[0].FixType, b[0].FixType)
}
