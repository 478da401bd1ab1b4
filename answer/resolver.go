package answer

import (
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrNoObject is reported when raw output contains no JSON object.
	ErrNoObject = errors.New("no JSON object in model output")
	// ErrShape is reported when the JSON object does not have the advice shape.
	ErrShape = errors.New("unexpected advice shape")
)

// Resolution is the result of resolving one raw output.
type Resolution struct {
	Answer  Answer
	Outcome Outcome
	Stage   Stage
	// Err explains parse_failed outcomes. It is informational only.
	Err error
}

// Options configures a Resolver.
type Options struct {
	// MaxScanCandidates bounds the balanced-brace scan.
	MaxScanCandidates int
	// Now is the clock used to stamp answers.
	Now func() time.Time
}

// Resolver extracts {"advice": {"analysis": ..., "sources": [...]}} from raw
// model output. It is stateless and safe for concurrent use.
type Resolver struct {
	maxCandidates int
	now           func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(optFns ...func(o *Options)) *Resolver {
	opts := Options{
		MaxScanCandidates: DefaultMaxScanCandidates,
		Now:               time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Resolver{maxCandidates: opts.MaxScanCandidates, now: opts.Now}
}

// Resolve maps raw to an Answer. Fields that are absent or null take their
// defaults (NoAdviceText, no sources); fields of the wrong type make the
// whole output unusable.
func (r *Resolver) Resolve(raw string) Resolution {
	now := r.now().UTC()

	obj, stage, ok := ExtractObject(raw, r.maxCandidates)
	if !ok {
		return Resolution{Answer: Apology(now), Outcome: OutcomeParseFailed, Err: ErrNoObject}
	}

	fail := func(err error) Resolution {
		return Resolution{Answer: Apology(now), Outcome: OutcomeParseFailed, Stage: stage, Err: err}
	}

	ans := Answer{Answer: NoAdviceText, Sources: []string{}, Timestamp: now}
	outcome := OutcomeNoAdvice

	advice := gjson.Get(obj, "advice")
	if present(advice) {
		if !advice.IsObject() {
			return fail(ErrShape)
		}

		if analysis := advice.Get("analysis"); present(analysis) {
			if analysis.Type != gjson.String {
				return fail(ErrShape)
			}
			ans.Answer = analysis.Str
			outcome = OutcomeResolved
		}

		if sources := advice.Get("sources"); present(sources) {
			if !sources.IsArray() {
				return fail(ErrShape)
			}
			for _, s := range sources.Array() {
				if s.Type != gjson.String {
					return fail(ErrShape)
				}
				ans.Sources = append(ans.Sources, s.Str)
			}
		}
	}

	return Resolution{Answer: ans, Outcome: outcome, Stage: stage}
}

func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}
