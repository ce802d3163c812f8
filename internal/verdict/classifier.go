// Package verdict implements the Verdict Classifier (spec §4.E): the single
// funnel that maps raw harness output plus sandbox exec outcomes to the
// canonical Status taxonomy. Classify is a pure function with no I/O so it
// is exhaustively unit-testable against the rule table.
package verdict

import (
	"apex-build/internal/codec"
	"apex-build/internal/judge"
)

// SandboxOutcome describes what the Sandbox Manager observed while running
// the harness, independent of what the harness itself reported.
type SandboxOutcome struct {
	// KilledByOuterDeadline is true when the sandbox's outer wall deadline
	// (compile_timeout + execution_timeout + margin) fired and the container
	// was killed before the harness could finish writing its result document.
	KilledByOuterDeadline bool

	// ExecError is set when the sandbox failed to run the harness at all
	// (upload, exec or result download failure) — this always
	// yields INTERNAL_ERROR regardless of any parsed result.
	ExecError error
}

// statusSynonyms normalizes alternate spellings a harness might legally
// emit (spec §4.E rule 3).
var statusSynonyms = map[judge.Status]judge.Status{
	"ERROR":         judge.StatusInternalError,
	"TIMEOUT_ERROR": judge.StatusTimeout,
}

// Classify applies spec §4.E's rules, first match wins.
func Classify(harnessExitCode int, outcome SandboxOutcome, result codec.ResultDoc, parseErr error) judge.Verdict {
	skeleton := result.ToVerdictSkeleton()

	// Rule 1: sandbox killed by its outer deadline.
	if outcome.KilledByOuterDeadline {
		if reachedRunPhase(result) {
			skeleton.Status = judge.StatusTimeout
		} else {
			skeleton.Status = judge.StatusCompileTimeout
		}
		skeleton.Match = nil
		return finalize(skeleton)
	}

	// Rule 2: sandbox-level failure, exit >= 3, or malformed/missing
	// result document all collapse to INTERNAL_ERROR.
	if outcome.ExecError != nil || harnessExitCode >= 3 || parseErr != nil {
		skeleton.Status = judge.StatusInternalError
		skeleton.Match = nil
		if outcome.ExecError != nil {
			skeleton.ErrorDetail = outcome.ExecError.Error()
		} else if parseErr != nil {
			skeleton.ErrorDetail = parseErr.Error()
		}
		return finalize(skeleton)
	}

	// Rule 3: adopt the harness status verbatim, normalizing synonyms.
	status := judge.Status(result.Status)
	if syn, ok := statusSynonyms[status]; ok {
		status = syn
	}
	skeleton.Status = status

	return finalize(skeleton)
}

// reachedRunPhase infers whether the harness had moved past compilation
// before the deadline fired, per spec §4.E rule 1: a non-zero compile_ms
// and the absence of compile output indicating failure.
func reachedRunPhase(result codec.ResultDoc) bool {
	if result.CompileTimeMs <= 0 {
		return false
	}
	if result.Status == string(judge.StatusCompileError) || result.Status == string(judge.StatusCompileTimeout) {
		return false
	}
	return true
}

// finalize applies rule 4: match is true only when status is SUCCESS, and
// is only defined at all when an Expected map was present (spec §3 — an
// empty expected map means no comparison was possible, so match stays
// undefined even on SUCCESS).
func finalize(v judge.Verdict) judge.Verdict {
	switch v.Status {
	case judge.StatusSuccess:
		if len(v.Expected) > 0 {
			v.Match = judge.BoolPtr(true)
		} else {
			v.Match = nil
		}
	case judge.StatusWrongAnswer:
		v.Match = judge.BoolPtr(false)
	default:
		v.Match = nil
	}
	return v
}
