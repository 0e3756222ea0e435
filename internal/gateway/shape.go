package gateway

import "sentinel/internal/tierpolicy"

// freeSignalCap and freeFibonacciSignalCap bound how many ranked/fibonacci
// signals a free-tier caller sees: free responses are capped rather than
// rejected, so a free caller always gets a usable answer, just a
// narrower one.
const (
	freeSignalCap          = 3
	freeFibonacciSignalCap = 10
)

// shapeResult applies the free-tier narrowing before a result is
// persisted and returned: signal lists are capped, AI fields are
// stripped (AI is never available on free anyway, but this guards against
// a future tier rule that enables AI without updating this function), and
// nothing else about the payload changes. pro/max pass through untouched.
func shapeResult(tool tierpolicy.Tool, tier tierpolicy.Tier, result interface{}) interface{} {
	if tier != tierpolicy.TierFree {
		return result
	}
	switch v := result.(type) {
	case AnalyzeSecurityResult:
		if len(v.Signals) > freeSignalCap {
			v.Signals = v.Signals[:freeSignalCap]
		}
		v.AIExplanation = nil
		return v
	case AnalyzeFibonacciResult:
		if len(v.Fibonacci.Signals) > freeFibonacciSignalCap {
			v.Fibonacci.Signals = v.Fibonacci.Signals[:freeFibonacciSignalCap]
		}
		return v
	case OptionsRiskAnalysisResult:
		v.AIExplanation = nil
		return v
	default:
		return result
	}
}
