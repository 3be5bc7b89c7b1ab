package patterns

import (
	"fmt"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/codesage/internal/types"
)

// testCaseSimilarityFloor is how close a test case's actual capture text
// must be to its expected text, on the Jaro-Winkler scale, to count as a
// pass. Patterns are hand-authored against small literal fixtures, so a
// capture either matches closely or the pattern is wrong; this isn't a
// fuzzy-search threshold.
const testCaseSimilarityFloor = 0.92

// runner parses source with languageID and evaluates a compiled pattern
// against it, returning the first match's captures. The registry does not
// implement this itself — it is supplied by whatever wires the AST Backend
// and Pattern Engine together, since evaluating a query requires both a
// parse tree and the engine's capture-collection logic.
type runner interface {
	Run(languageID string, source []byte, p *types.Pattern) (map[string][]types.Span, error)
}

// Validate runs p's embedded test cases (if a runner is available) and
// reports syntactic soundness via p.Validate() plus, when test cases exist
// and a runner was supplied, fuzzy text-similarity scoring of the actual
// capture against the expected text.
func Validate(p *types.Pattern, r runner) types.PatternValidation {
	result := types.PatternValidation{OK: true}

	if err := p.Validate(); err != nil {
		result.OK = false
		result.Errors = append(result.Errors, err.Error())
	}

	if !p.Usable {
		result.OK = false
		result.Errors = append(result.Errors, fmt.Sprintf("pattern %q is not usable", p.ID))
	}

	if r == nil || len(p.TestCases) == 0 {
		return result
	}

	for i, tc := range p.TestCases {
		captures, err := r.Run(p.LanguageID, []byte(tc.Input), p)
		if err != nil {
			result.OK = false
			result.Errors = append(result.Errors, fmt.Sprintf("test case %d: run failed: %v", i, err))
			continue
		}
		spans, ok := captures[tc.ExpectedCapture]
		if !ok || len(spans) == 0 {
			result.OK = false
			result.Errors = append(result.Errors, fmt.Sprintf("test case %d: capture %q not produced", i, tc.ExpectedCapture))
			continue
		}
		span := spans[0]
		actual := tc.Input[span.StartByte:span.EndByte]

		if tc.ExpectedText == "" {
			continue
		}
		score, err := edlib.StringsSimilarity(actual, tc.ExpectedText, edlib.JaroWinkler)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("test case %d: similarity scoring failed: %v", i, err))
			continue
		}
		if float64(score) < testCaseSimilarityFloor {
			result.OK = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"test case %d: capture %q %.2f similarity to expected %q (got %q)",
				i, tc.ExpectedCapture, score, tc.ExpectedText, actual))
		}
	}

	return result
}
