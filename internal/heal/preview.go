package heal

import (
	"journeyheal/internal/classify"
	"journeyheal/internal/config"
	"journeyheal/internal/fixes"
	"journeyheal/internal/rules"
)

// FixPreview is the dry-run outcome of one candidate fix.
type FixPreview struct {
	FixType     rules.FixType `json:"fix_type"`
	Applied     bool          `json:"applied"`
	Description string        `json:"description"`
	Confidence  float64       `json:"confidence"`
	Code        string        `json:"code,omitempty"`
}

// PreviewFixes applies every candidate fix for the classification to the
// source without touching disk, in the order the loop would try them.
// errText is the raw failure output the strategies may mine for evidence.
func PreviewFixes(code, errText string, cls classify.Classification, cfg config.Healing, aria *fixes.AriaInfo) []FixPreview {
	decision := rules.Evaluate(cls, cfg)
	if !decision.CanHeal {
		return nil
	}

	ctx := fixes.Context{Aria: aria, ErrorText: errText}
	out := make([]FixPreview, 0, len(decision.ApplicableFixes))
	for _, fix := range decision.ApplicableFixes {
		res := fixes.Apply(fix, code, ctx)
		p := FixPreview{
			FixType:     fix,
			Applied:     res.Applied,
			Description: res.Description,
			Confidence:  res.Confidence,
		}
		if res.Applied {
			p.Code = res.Code
		}
		out = append(out, p)
	}
	return out
}

// WouldFixApply reports whether a single fix strategy would transform the
// source, without writing anything.
func WouldFixApply(code, errText string, fixType rules.FixType) bool {
	res := fixes.Apply(fixType, code, fixes.Context{ErrorText: errText})
	return res.Applied
}
