package quiz

import (
	"strconv"
	"strings"
)

// Verdict is the outcome of validating a single submitted answer. When
// AutoGradable is false the IsCorrect/Score values are provisional and a
// teacher must grade the answer before the attempt total is authoritative.
type Verdict struct {
	AutoGradable bool
	IsCorrect    bool
	Score        float64
}

// Validate decides correctness for a submitted answer. It is a pure
// function: no I/O, no side effects, and every input — including malformed
// ones — yields a value, never an error.
//
// Empty input and the MissingAnswer sentinel short-circuit to a decided
// incorrect result regardless of question type.
func Validate(q Question, submitted string) Verdict {
	trimmed := strings.TrimSpace(submitted)
	if trimmed == "" || trimmed == MissingAnswer {
		return Verdict{AutoGradable: true}
	}

	switch q.Type {
	case TypeMultipleChoice:
		return validateMultipleChoice(q, trimmed)
	case TypeTrueFalse:
		return validateTrueFalse(q, trimmed)
	case TypeIdentification:
		return validateIdentification(q, trimmed)
	case TypeEssay:
		// Never machine-checkable.
		return Verdict{AutoGradable: false}
	default:
		return Verdict{AutoGradable: false}
	}
}

// validateMultipleChoice treats the submission as an option index. Anything
// that does not address an existing option is decided incorrect, not an
// error.
func validateMultipleChoice(q Question, submitted string) Verdict {
	idx, err := strconv.Atoi(submitted)
	if err != nil || idx < 0 || idx >= len(q.Options) {
		return Verdict{AutoGradable: true}
	}
	if submitted == q.CorrectAnswer {
		return Verdict{AutoGradable: true, IsCorrect: true, Score: q.Points}
	}
	return Verdict{AutoGradable: true}
}

func validateTrueFalse(q Question, submitted string) Verdict {
	if truthy(submitted) == truthy(q.CorrectAnswer) {
		return Verdict{AutoGradable: true, IsCorrect: true, Score: q.Points}
	}
	return Verdict{AutoGradable: true}
}

// validateIdentification trusts only an exact (trimmed, case-folded) match
// for auto-grading; any mismatch falls to a human with a provisional zero.
func validateIdentification(q Question, submitted string) Verdict {
	want := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
	got := strings.ToLower(submitted)
	if got == want {
		return Verdict{AutoGradable: true, IsCorrect: true, Score: q.Points}
	}
	return Verdict{AutoGradable: false}
}

// truthy maps the accepted boolean words to true; every other value counts
// as false rather than invalid.
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "yes", "y":
		return true
	default:
		return false
	}
}
