package types

// Options configures one Unified Parser call. Parse applies exactly the
// values given here and reads no configuration itself; the demo CLI starts
// from the config layer's Defaults and overrides fields from its flags.
type Options struct {
	ExtractFeatures     bool
	ExtractBlocks       bool
	IncludeAST          bool
	Categories          map[PatternCategory]struct{}
	PatternTimeoutMS    int
	RequestCacheEnabled bool
}

// WantsCategory reports whether cat should be evaluated, treating an empty
// Categories set as "all categories" so callers aren't forced to enumerate
// the full closed set just to get everything.
func (o Options) WantsCategory(cat PatternCategory) bool {
	if len(o.Categories) == 0 {
		return true
	}
	_, ok := o.Categories[cat]
	return ok
}

// StrategyMetrics tracks one recovery strategy's running performance,
// mirroring the attempts/successes/success_rate/avg_recovery_time shape
// recovery strategies have always reported.
type StrategyMetrics struct {
	Attempts        int64
	Successes       int64
	SuccessRate     float64
	AvgRecoveryTime float64 // seconds
}

// PatternMetrics is the telemetry payload threaded through a ParserResult:
// per-pattern match counts and the recovery strategies' running stats.
type PatternMetrics struct {
	MatchCounts      map[string]int64
	StrategyByName   map[string]StrategyMetrics
	RecoveryAttempts int64
}

// ParserResult is the value the Unified Parser facade returns. Once
// returned it is never mutated further by the engine.
type ParserResult struct {
	Success        bool
	Classification Classification
	Tree           *ParseTree
	Matches        []PatternMatch
	Features       FeatureSet
	Blocks         []ExtractedBlock
	Errors         []error
	Telemetry      PatternMetrics
}
