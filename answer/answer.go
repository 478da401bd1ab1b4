// Package answer turns the raw text of an advice run into the typed answer
// returned to callers. Model output is untrusted: it may be valid JSON,
// JSON wrapped in prose or code fences, several objects, or no JSON at all.
// Resolution never fails; anything unusable becomes a fixed apology.
package answer

import "time"

const (
	// ApologyText is returned when no usable answer could be produced.
	ApologyText = "I apologize, but I'm having trouble processing your request. Please try again."
	// NoAdviceText is used when the output decodes but carries no analysis.
	NoAdviceText = "No advice available"
)

// Answer is the public result of an advice request.
type Answer struct {
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources"`
	Timestamp time.Time `json:"timestamp"`
}

// Apology returns the apology answer stamped with now.
func Apology(now time.Time) Answer {
	return Answer{Answer: ApologyText, Sources: []string{}, Timestamp: now.UTC()}
}

// Outcome classifies how an answer was produced.
type Outcome string

// Outcomes reported for logs and metrics.
const (
	OutcomeResolved       Outcome = "resolved"
	OutcomeNoAdvice       Outcome = "no_advice"
	OutcomeParseFailed    Outcome = "parse_failed"
	OutcomePipelineFailed Outcome = "pipeline_failed"
)

// Outcomes lists every Outcome value.
func Outcomes() []Outcome {
	return []Outcome{OutcomeResolved, OutcomeNoAdvice, OutcomeParseFailed, OutcomePipelineFailed}
}
